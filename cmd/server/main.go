// Package main runs the GitHub App server with a small demo registry: it
// greets newly opened issues and closes them again, the classic "cruel
// closer" App. Replace the registrations in buildRegistry with your own
// handlers to build a real App on the framework.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/go-github/v74/github"
	"github.com/joho/godotenv"

	"github.com/sakif/githubapp/internal/hook"
	"github.com/sakif/githubapp/internal/server"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	var cfg server.Config
	if err := cfg.FillFromEnv(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, buildRegistry(), logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func buildRegistry() *hook.Registry {
	registry := hook.NewRegistry()
	registry.On("issues.opened", "cruel-closer", closeIssue)
	registry.On("issues.reopened", "cruel-closer", closeIssue)
	return registry
}

// closeIssue comments on the issue and closes it.
func closeIssue(ctx context.Context, d *hook.Delivery) error {
	client, err := d.Clients.Client(ctx)
	if err != nil {
		return err
	}

	owner := d.Str("repository", "owner", "login")
	repo := d.Str("repository", "name")
	number := int(d.Int("issue", "number"))

	_, _, err = client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.Ptr("Thanks for the report! Closing this for now."),
	})
	if err != nil {
		return err
	}

	_, _, err = client.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		State: github.Ptr("closed"),
	})
	return err
}
