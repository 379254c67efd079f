package httpapi

import (
	"context"

	"github.com/goliatone/go-account-cache/interceptor"
	"github.com/goliatone/go-account-cache/internal/account"
	"github.com/goliatone/go-account-cache/internal/auth"
)

// MessageResponse acknowledges writes that have no resource to return.
type MessageResponse struct {
	Message string `json:"message"`
}

type handlers struct {
	accounts *account.Service
}

// currentUser returns the authenticated user id. Routes behind RequireAuth
// always carry claims, so an empty subject is an identity failure.
func currentUser(ctx context.Context) (string, error) {
	id, err := auth.Actor(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", auth.ErrMissingIdentity
	}
	return id, nil
}

func (h *handlers) register(ctx context.Context, _ *interceptor.Request, in account.RegisterInput) (*account.AuthResult, error) {
	return h.accounts.Register(ctx, in)
}

func (h *handlers) login(ctx context.Context, _ *interceptor.Request, in account.LoginInput) (*account.AuthResult, error) {
	return h.accounts.Login(ctx, in)
}

func (h *handlers) listUsers(ctx context.Context, _ *interceptor.Request) ([]account.Profile, error) {
	return h.accounts.FindAll(ctx)
}

func (h *handlers) profile(ctx context.Context, _ *interceptor.Request) (account.Profile, error) {
	id, err := currentUser(ctx)
	if err != nil {
		return account.Profile{}, err
	}
	return h.accounts.GetProfile(ctx, id)
}

func (h *handlers) getUser(ctx context.Context, req *interceptor.Request) (account.Profile, error) {
	return h.accounts.GetProfile(ctx, req.Params["id"])
}

func (h *handlers) updateProfile(ctx context.Context, _ *interceptor.Request, in account.UpdateInput) (account.Profile, error) {
	id, err := currentUser(ctx)
	if err != nil {
		return account.Profile{}, err
	}
	return h.accounts.Update(ctx, id, in)
}

func (h *handlers) changePassword(ctx context.Context, _ *interceptor.Request, in account.ChangePasswordInput) (MessageResponse, error) {
	id, err := currentUser(ctx)
	if err != nil {
		return MessageResponse{}, err
	}
	if err := h.accounts.ChangePassword(ctx, id, in); err != nil {
		return MessageResponse{}, err
	}
	return MessageResponse{Message: "Password changed successfully"}, nil
}

func (h *handlers) updateUser(ctx context.Context, req *interceptor.Request, in account.UpdateInput) (account.Profile, error) {
	return h.accounts.Update(ctx, req.Params["id"], in)
}

func (h *handlers) activate(ctx context.Context, req *interceptor.Request) (account.Profile, error) {
	return h.accounts.Activate(ctx, req.Params["id"])
}

func (h *handlers) deactivate(ctx context.Context, req *interceptor.Request) (account.Profile, error) {
	return h.accounts.Deactivate(ctx, req.Params["id"])
}

func (h *handlers) deleteUser(ctx context.Context, req *interceptor.Request) (MessageResponse, error) {
	if err := h.accounts.Delete(ctx, req.Params["id"]); err != nil {
		return MessageResponse{}, err
	}
	return MessageResponse{Message: "User deleted successfully"}, nil
}
