// Package auth implements the Strava OAuth flow and persistent token
// management.
package auth

import (
	"golang.org/x/oauth2"

	"stravaload/internal/config"
)

const (
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Strava uses comma-separated scopes inside a single scope value
var Scopes = []string{"read,activity:read_all,profile:read_all"}

// NewOAuthConfig builds the oauth2 config from app credentials
func NewOAuthConfig(cfg config.StravaConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthURL,
			TokenURL: TokenURL,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      Scopes,
	}
}

// Result is a completed authorization: the granted token plus the
// athlete identity Strava embeds in the token response
type Result struct {
	Token     *oauth2.Token
	AthleteID int64
}

// ExtractAthleteID pulls the athlete ID out of the token response
// extras. Returns 0 if the response carried no athlete.
func ExtractAthleteID(token *oauth2.Token) int64 {
	athlete, ok := token.Extra("athlete").(map[string]interface{})
	if !ok {
		return 0
	}
	id, ok := athlete["id"].(float64)
	if !ok {
		return 0
	}
	return int64(id)
}
