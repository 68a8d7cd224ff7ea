// Package handler exposes the identity flows over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"edu-platform/backend/internal/apperr"
	"edu-platform/backend/internal/identity/service"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server/reqctx"
	"edu-platform/backend/internal/server/response"
	userdomain "edu-platform/backend/internal/user/domain"
)

// AuthService is the subset of service.AuthService the handler calls.
type AuthService interface {
	Login(ctx context.Context, login, password string) (*service.Session, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Refresh(ctx context.Context, token string) (*service.Session, error)
	Me(ctx context.Context, userID int64) (*userdomain.User, error)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=72"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" validate:"required,email,max=128"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Nickname string `json:"nickname" validate:"omitempty,max=32"`
}

type userView struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	CreatedAt string `json:"createdAt"`
}

type tokenView struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt string    `json:"expiresAt"`
	User      *userView `json:"user,omitempty"`
}

// Handler serves /api/auth.
type Handler struct {
	svc      AuthService
	logger   *slog.Logger
	validate *validator.Validate
}

// New returns a Handler. logger may be nil.
func New(svc AuthService, logger *slog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Handler{svc: svc, logger: logger, validate: v}
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", response.Handle(h.logger, h.login))
	r.Post("/register", response.Handle(h.logger, h.register))
	r.Post("/refresh", response.Handle(h.logger, h.refresh))
	r.Get("/me", response.Handle(h.logger, h.me))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	sess, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	response.OK(w, toTokenView(sess))
	return nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	sess, err := h.svc.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		return err
	}
	response.OK(w, toTokenView(sess))
	return nil
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) error {
	token, ok := security.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return &apperr.MissingParamError{Name: "Authorization"}
	}
	sess, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		return err
	}
	response.OK(w, toTokenView(sess))
	return nil
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) error {
	userID, ok := reqctx.UserID(r.Context())
	if !ok {
		return apperr.New(apperr.Unauthorized)
	}
	u, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		return err
	}
	response.OK(w, toUserView(u))
	return nil
}

// decode reads a JSON body into dst and validates it. Body limit errors are
// returned as is, a mistyped field becomes apperr.ParamTypeError, and other
// read and syntax failures wrap apperr.ErrUnreadableBody.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var (
			tooLarge *http.MaxBytesError
			typeErr  *json.UnmarshalTypeError
		)
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &apperr.ParamTypeError{Name: typeErr.Field, Cause: err}
		}
		if errors.Is(err, io.EOF) {
			return apperr.ErrUnreadableBody
		}
		return fmt.Errorf("%w: %v", apperr.ErrUnreadableBody, err)
	}
	return h.validate.Struct(dst)
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func toTokenView(s *service.Session) tokenView {
	v := tokenView{
		Token:     s.Token,
		TokenType: strings.TrimSpace(security.BearerPrefix),
		ExpiresAt: s.ExpiresAt.In(time.Local).Format(response.TimestampLayout),
	}
	if s.User != nil {
		uv := toUserView(s.User)
		v.User = &uv
	}
	return v
}

func toUserView(u *userdomain.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Nickname:  u.Nickname,
		CreatedAt: u.CreatedAt.In(time.Local).Format(response.TimestampLayout),
	}
}
