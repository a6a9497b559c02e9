package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ms-voting/internal/apperr"
	"ms-voting/internal/auth"
	"ms-voting/internal/models"
)

// Login checks credentials and issues an admin token. Unknown users and
// wrong passwords get the same answer.
func (s *VotingService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, apperr.Invalid("username and password are required")
	}

	admin, err := s.Store.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("unknown user %q", username))
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, classify("login", err)
	}

	if !auth.CheckPassword(admin.PasswordHash, req.Password) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad password for %q", username))
		return nil, apperr.ErrInvalidCredentials
	}

	token, err := s.Tokens.Issue(admin)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "TOKEN_ISSUE_FAILED", "could not issue token", err)
	}

	s.Logger.LogAdmin("LOGIN", admin.Username, fmt.Sprintf("signed in as %s", admin.Role))
	return &models.LoginResponse{Token: token, Username: admin.Username, Role: admin.Role}, nil
}
