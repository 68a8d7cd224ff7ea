package domain

import "testing"

func TestUser_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{Username: "alice", Email: "a@example.com", PasswordHash: "h"}, false},
		{"missing username", User{Email: "a@example.com", PasswordHash: "h"}, true},
		{"missing email", User{Username: "alice", PasswordHash: "h"}, true},
		{"missing hash", User{Username: "alice", Email: "a@example.com"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.user.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestUser_Active(t *testing.T) {
	if !(&User{Status: UserStatusActive}).Active() {
		t.Error("active user reported inactive")
	}
	if (&User{Status: UserStatusDisabled}).Active() {
		t.Error("disabled user reported active")
	}
}
