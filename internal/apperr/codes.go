// Package apperr defines the closed catalog of response codes and the coded
// error types that business logic and the request pipeline raise.
package apperr

// Code is a stable numeric response code. Codes are never reused for a
// different meaning; add new values at the end of their domain range.
type Code int

// Generic codes (HTTP-like).
const (
	Success              Code = 200
	BadRequest           Code = 400
	Unauthorized         Code = 401
	Forbidden            Code = 403
	NotFound             Code = 404
	MethodNotAllowed     Code = 405
	UnsupportedMediaType Code = 415
	InternalError        Code = 500
)

// Auth codes.
const (
	InvalidCredentials Code = 1001
	TokenInvalid       Code = 1002
	TokenExpired       Code = 1003
	UserNotFound       Code = 1004
	UsernameTaken      Code = 1005
	EmailTaken         Code = 1006
	AccountDisabled    Code = 1007
)

// Content codes.
const (
	ContentNotFound     Code = 2001
	ContentDeleted      Code = 2002
	ContentNotPublished Code = 2003
)

// Comment codes.
const (
	CommentNotFound Code = 3001
	CommentEmpty    Code = 3002
	CommentTooLong  Code = 3003
)

// Action (like/favorite/follow) codes.
const (
	ActionDuplicate   Code = 4001
	ActionNotFound    Code = 4002
	ActionUnsupported Code = 4003
)

// Persistence codes.
const (
	DatabaseError      Code = 5001
	DatabaseConstraint Code = 5002
)

// Cache codes.
const (
	CacheError Code = 6001
)

// Upload codes.
const (
	FileTooLarge        Code = 7001
	FileTypeUnsupported Code = 7002
	UploadFailed        Code = 7003
)

// Validation codes.
const (
	ValidationFailed      Code = 8001
	MissingParameter      Code = 8002
	ParameterTypeMismatch Code = 8003
)

// Domain is the partition of the catalog a code belongs to.
type Domain string

const (
	DomainGeneric     Domain = "generic"
	DomainAuth        Domain = "auth"
	DomainContent     Domain = "content"
	DomainComment     Domain = "comment"
	DomainAction      Domain = "action"
	DomainPersistence Domain = "persistence"
	DomainCache       Domain = "cache"
	DomainUpload      Domain = "upload"
	DomainValidation  Domain = "validation"
)

var messages = map[Code]string{
	Success:              "操作成功",
	BadRequest:           "请求参数错误",
	Unauthorized:         "未授权访问",
	Forbidden:            "禁止访问",
	NotFound:             "资源不存在",
	MethodNotAllowed:     "请求方法不支持",
	UnsupportedMediaType: "不支持的媒体类型",
	InternalError:        "服务器内部错误",

	InvalidCredentials: "用户名或密码错误",
	TokenInvalid:       "令牌无效",
	TokenExpired:       "令牌已过期",
	UserNotFound:       "用户不存在",
	UsernameTaken:      "用户名已存在",
	EmailTaken:         "邮箱已被注册",
	AccountDisabled:    "账户已被禁用",

	ContentNotFound:     "内容不存在",
	ContentDeleted:      "内容已被删除",
	ContentNotPublished: "内容未发布",

	CommentNotFound: "评论不存在",
	CommentEmpty:    "评论内容不能为空",
	CommentTooLong:  "评论内容过长",

	ActionDuplicate:   "请勿重复操作",
	ActionNotFound:    "操作记录不存在",
	ActionUnsupported: "不支持的操作类型",

	DatabaseError:      "数据库操作失败",
	DatabaseConstraint: "数据约束冲突",

	CacheError: "缓存操作失败",

	FileTooLarge:        "文件大小超出限制",
	FileTypeUnsupported: "不支持的文件类型",
	UploadFailed:        "文件上传失败",

	ValidationFailed:      "参数校验失败",
	MissingParameter:      "缺少必需参数",
	ParameterTypeMismatch: "参数类型错误",
}

// All returns every code in the catalog in ascending order.
func All() []Code {
	return []Code{
		Success, BadRequest, Unauthorized, Forbidden, NotFound, MethodNotAllowed, UnsupportedMediaType, InternalError,
		InvalidCredentials, TokenInvalid, TokenExpired, UserNotFound, UsernameTaken, EmailTaken, AccountDisabled,
		ContentNotFound, ContentDeleted, ContentNotPublished,
		CommentNotFound, CommentEmpty, CommentTooLong,
		ActionDuplicate, ActionNotFound, ActionUnsupported,
		DatabaseError, DatabaseConstraint,
		CacheError,
		FileTooLarge, FileTypeUnsupported, UploadFailed,
		ValidationFailed, MissingParameter, ParameterTypeMismatch,
	}
}

// Message returns the catalog message for c, or the InternalError message
// for codes outside the catalog.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[InternalError]
}

// Known reports whether c is part of the catalog.
func (c Code) Known() bool {
	_, ok := messages[c]
	return ok
}

// Domain returns the catalog partition c falls in, derived from its range.
func (c Code) Domain() Domain {
	switch {
	case c < 1000:
		return DomainGeneric
	case c < 2000:
		return DomainAuth
	case c < 3000:
		return DomainContent
	case c < 4000:
		return DomainComment
	case c < 5000:
		return DomainAction
	case c < 6000:
		return DomainPersistence
	case c < 7000:
		return DomainCache
	case c < 8000:
		return DomainUpload
	default:
		return DomainValidation
	}
}

// Int returns c as a plain int for serialization.
func (c Code) Int() int { return int(c) }
