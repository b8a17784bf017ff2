// Package sync reconciles deck sources with the card store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/lexideck/internal/cardhash"
	"github.com/conorfennell/lexideck/internal/domain"
	"github.com/conorfennell/lexideck/internal/gitsource"
	"github.com/conorfennell/lexideck/internal/parser"
	"github.com/conorfennell/lexideck/internal/storage"
)

// Store is the subset of storage the syncer needs.
type Store interface {
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	FindCardByHash(ctx context.Context, hash string) (*domain.MemoryCard, error)
	InsertCard(ctx context.Context, card domain.MemoryCard, sourceID int64) error
	GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.MemoryCard, error)
	DeleteCardByHash(ctx context.Context, hash string) error
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
}

// GitFetcher brings a remote repository up to date at localPath.
type GitFetcher func(ctx context.Context, url, localPath string) error

// Report summarises the reconciliation of one source.
type Report struct {
	SourceID int64    `json:"source_id"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Orphaned int      `json:"orphaned"`
	Errors   []string `json:"errors,omitempty"`
}

// Syncer walks every source and reconciles its cards.
type Syncer struct {
	DB       Store
	ReposDir string
	Fetch    GitFetcher
	Logger   *slog.Logger
	Now      func() time.Time
}

// New returns a Syncer that clones git sources below reposDir.
func New(db Store, reposDir string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		DB:       db,
		ReposDir: reposDir,
		Fetch:    gitsource.Sync,
		Logger:   logger.With("component", "sync"),
		Now:      time.Now,
	}
}

// SourceType classifies a source path as a git URL or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return storage.SourceGit
	}
	return storage.SourceLocal
}

// Run iterates over all sources and reconciles them. A failing source is
// logged and reported; it does not stop the others.
func (s *Syncer) Run(ctx context.Context) ([]Report, error) {
	s.Logger.Info("starting sync process for all sources")
	sources, err := s.DB.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.Logger.Info("no sources configured")
		return nil, nil
	}

	reports := make([]Report, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		s.Logger.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		report := Report{SourceID: source.ID, Path: source.Path}
		dir := source.Path
		if source.Type == storage.SourceGit {
			dir, err = s.checkout(ctx, source.Path)
			if err != nil {
				s.Logger.Error("error syncing git repo", "url", source.Path, "error", err)
				report.Errors = append(report.Errors, err.Error())
				reports = append(reports, report)
				continue
			}
		}

		s.reconcile(ctx, source.ID, dir, &report)
		reports = append(reports, report)
	}
	s.Logger.Info("sync process complete", "sources", len(reports))
	return reports, nil
}

func (s *Syncer) checkout(ctx context.Context, repoURL string) (string, error) {
	localRepoPath, err := RepoPath(s.ReposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(localRepoPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := s.Fetch(ctx, repoURL, localRepoPath); err != nil {
		return "", err
	}
	return localRepoPath, nil
}

func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string, report *Report) {
	logger := s.Logger.With("source_id", sourceID, "path", dir)
	found := make(map[string]bool)
	complete := true
	fail := func(err error) {
		report.Errors = append(report.Errors, err.Error())
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.IsDeckFile(d.Name()) {
			return nil
		}

		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			fail(fmt.Errorf("parsing %s: %w", path, parseErr))
			if errors.Is(parseErr, parser.ErrIncomplete) {
				complete = false
			}
		}
		for _, card := range fileCards {
			card.Hash = cardhash.Hash(card)
			report.Parsed++
			if found[card.Hash] {
				continue
			}
			found[card.Hash] = true

			existing, err := s.DB.FindCardByHash(ctx, card.Hash)
			if err != nil {
				fail(fmt.Errorf("db check for %s: %w", card.Hash, err))
				continue
			}
			if existing != nil {
				continue
			}
			logger.Debug("new card found, inserting", "hash", card.Hash, "word", card.Word)
			if err := s.DB.InsertCard(ctx, card, sourceID); err != nil {
				fail(fmt.Errorf("db insert for %s: %w", card.Hash, err))
				continue
			}
			report.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		// Without a complete walk, orphan detection would delete live cards.
		logger.Error("error walking directory", "error", walkErr)
		fail(walkErr)
		return
	}
	if !complete {
		logger.Warn("source has unreadable decks, keeping existing cards")
		return
	}

	dbCards, err := s.DB.GetCardsBySourceID(ctx, sourceID)
	if err != nil {
		logger.Error("error getting cards for source", "error", err)
		fail(err)
		return
	}

	for _, dbCard := range dbCards {
		if found[dbCard.Hash] {
			continue
		}
		logger.Info("orphaned card, deleting", "hash", dbCard.Hash)
		if err := s.DB.DeleteCardByHash(ctx, dbCard.Hash); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("failed to delete orphaned card", "hash", dbCard.Hash, "error", err)
			fail(err)
			continue
		}
		report.Orphaned++
	}

	if err := s.DB.UpdateSourceLastScanned(ctx, sourceID, s.Now()); err != nil {
		logger.Warn("failed to update last scanned for source", "error", err)
	}

	logger.Info("reconciliation complete",
		"parsed_cards", report.Parsed,
		"inserted", report.Inserted,
		"orphaned_deleted", report.Orphaned,
		"errors", len(report.Errors),
	)
}

// RepoPath maps a git URL (https or scp-style) to its clone directory
// under baseDir.
func RepoPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.SplitN(repoURL, ":", 2)
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 && hostAndUser[1] != "" {
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return safeJoin(baseDir, hostAndUser[1], repoPath)
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	return safeJoin(baseDir, parsedURL.Host, strings.TrimSuffix(parsedURL.Path, ".git"))
}

func safeJoin(baseDir, host, repoPath string) (string, error) {
	if host == "" || host == "." || host == ".." || strings.ContainsAny(host, `/\`) {
		return "", fmt.Errorf("git URL has an invalid host: %q", host)
	}
	p := filepath.Join(baseDir, host, filepath.Clean("/"+repoPath))
	if p == filepath.Join(baseDir, host) {
		return "", fmt.Errorf("git URL has no repository path: %s/%s", host, repoPath)
	}
	return p, nil
}
