package models

import "github.com/oapi-codegen/runtime/types"

type LoginRequest struct {
	Email    types.Email `json:"email"`
	Password string      `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresAt             int64  `json:"expires_at"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

func NewTokenPairResponse(pair *TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:           pair.AccessToken,
		TokenType:             "Bearer",
		ExpiresAt:             pair.AccessExpiresAt.Unix(),
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshExpiresAt.Unix(),
	}
}
