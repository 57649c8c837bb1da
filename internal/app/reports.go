package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"beyondcare/internal/storage"
	"beyondcare/internal/util"
	"beyondcare/pkg/ai"
	"beyondcare/pkg/domain"
	"beyondcare/pkg/extract"
	"beyondcare/pkg/prompt"
)

// UploadReport runs the report ingestion pipeline: store the bytes, extract
// text, summarize via the AI gateway or the local fallback, and persist
// exactly one report record.
//
// Extraction failure is fatal to the request and leaves nothing behind.
// AI failure is not: the upload still succeeds with a fallback summary.
func (a *App) UploadReport(ctx context.Context, user domain.User, filename, mediaType string, r io.Reader, size int64) (domain.Report, error) {
	if strings.TrimSpace(filename) == "" {
		return domain.Report{}, ErrFileRequired
	}
	if size > a.maxUploadBytes {
		return domain.Report{}, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r, a.maxUploadBytes+1))
	if err != nil {
		return domain.Report{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > a.maxUploadBytes {
		return domain.Report{}, ErrFileTooLarge
	}

	storedName := storage.NewStoredName(filename)
	if err := a.blobs.Save(ctx, storedName, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
		return domain.Report{}, fmt.Errorf("save file: %w", err)
	}

	text, err := extract.Extract(data, mediaType)
	if err != nil {
		a.deleteBlob(ctx, storedName)
		return domain.Report{}, fmt.Errorf("extract text: %w", err)
	}

	summary, findings := a.summarize(ctx, text)

	report := domain.Report{
		ID:               util.NewID(),
		OwnerID:          user.ID,
		OriginalFilename: filepath.Base(filename),
		StoredFilename:   storedName,
		MediaType:        mediaType,
		SizeBytes:        int64(len(data)),
		Summary:          summary,
		KeyFindings:      findings,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.SaveReport(report); err != nil {
		a.deleteBlob(ctx, storedName)
		return domain.Report{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

// summarize asks the AI gateway for a report summary and degrades to a
// truncated raw-text summary on any gateway failure.
func (a *App) summarize(ctx context.Context, text string) (string, []string) {
	summary, err := a.ai.Generate(ctx, prompt.ForReport(text), reportMaxTokens)
	if err != nil {
		var aiErr *ai.Error
		if errors.As(err, &aiErr) {
			slog.Info("ai fallback", "interaction", "report", "kind", string(aiErr.Kind))
		} else {
			slog.Warn("report summarize failed", "err", err)
		}
		return fallbackSummaryMarker + truncateRunes(text, fallbackSummaryChars), nil
	}
	return summary, keyFindings(summary)
}

func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// keyFindings pulls bullet lines out of an AI summary. Fallback summaries
// carry no findings.
func keyFindings(summary string) []string {
	var findings []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "- "); ok {
			line = rest
		} else if rest, ok := strings.CutPrefix(line, "* "); ok {
			line = rest
		} else {
			continue
		}
		line = strings.TrimSpace(line)
		if line != "" {
			findings = append(findings, line)
		}
	}
	return findings
}

// ListReports returns the user's reports, newest first.
func (a *App) ListReports(user domain.User) ([]domain.Report, error) {
	return a.store.ListReportsByOwner(user.ID)
}

// OpenReport returns a report's metadata and a reader over its original
// bytes, scoped to the owning user.
func (a *App) OpenReport(ctx context.Context, user domain.User, id string) (domain.Report, io.ReadCloser, error) {
	report, found, err := a.store.GetReportByOwner(id, user.ID)
	if err != nil {
		return domain.Report{}, nil, fmt.Errorf("lookup report: %w", err)
	}
	if !found {
		return domain.Report{}, nil, ErrReportNotFound
	}
	rc, err := a.blobs.Open(ctx, report.StoredFilename)
	if err != nil {
		return domain.Report{}, nil, fmt.Errorf("open report file: %w", err)
	}
	return report, rc, nil
}

// DeleteReport removes a report record and makes a best-effort attempt to
// remove its file. File-removal failure never blocks record removal.
func (a *App) DeleteReport(ctx context.Context, user domain.User, id string) error {
	report, found, err := a.store.GetReportByOwner(id, user.ID)
	if err != nil {
		return fmt.Errorf("lookup report: %w", err)
	}
	if !found {
		return ErrReportNotFound
	}
	a.deleteBlob(ctx, report.StoredFilename)
	if err := a.store.DeleteReport(report.ID); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

func (a *App) deleteBlob(ctx context.Context, name string) {
	if err := a.blobs.Delete(ctx, name); err != nil {
		slog.Warn("blob delete failed", "name", name, "err", err)
	}
}
