package flow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/intake-bot-go/internal/messenger"
	"github.com/openclaw/intake-bot-go/internal/model"
)

const (
	attachmentDownloadTimeout = 60 * time.Second
	maxAttachmentBytes        = 25 << 20
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-]+`)

// persistAttachments downloads a batch concurrently and appends the results
// to the session in input order. A failed download records its error on the
// entry instead of aborting the batch.
func (f *Flow) persistAttachments(ctx context.Context, sess *model.Session, attachments []model.Attachment) []model.Attachment {
	if sess.TempDir == "" {
		sess.TempDir = filepath.Join(f.tempRoot, sess.ID)
	}
	if err := os.MkdirAll(sess.TempDir, 0o700); err != nil {
		log.Error().Err(err).Str("dir", sess.TempDir).Msg("failed to create attachment directory")
		batch := make([]model.Attachment, len(attachments))
		for i, att := range attachments {
			att.Error = "storage unavailable"
			batch[i] = att
		}
		sess.Data.Attachments = append(sess.Data.Attachments, batch...)
		return batch
	}

	batch := make([]model.Attachment, len(attachments))
	g, gctx := errgroup.WithContext(ctx)
	for i, att := range attachments {
		i, att := i, att
		g.Go(func() error {
			batch[i] = f.downloadAttachment(gctx, sess.TempDir, att)
			return nil
		})
	}
	// Workers never return errors; failures are recorded per entry.
	_ = g.Wait()

	sess.Data.Attachments = append(sess.Data.Attachments, batch...)
	return batch
}

func (f *Flow) downloadAttachment(ctx context.Context, dir string, att model.Attachment) model.Attachment {
	name := sanitizeFilename(att.Filename)
	if name == "" {
		name = fmt.Sprintf("attachment-%d", time.Now().UnixMilli())
	}
	att.Filename = name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		att.Error = "invalid attachment URL"
		return att
	}
	resp, err := f.downloader.Do(req)
	if err != nil {
		att.Error = err.Error()
		return att
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		att.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return att
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		att.Error = "could not save file"
		return att
	}
	defer file.Close()

	size, err := io.Copy(file, io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		os.Remove(path)
		att.Error = err.Error()
		return att
	}

	att.Path = path
	att.Size = size
	return att
}

// sanitizeFilename keeps a conservative character set so names are safe to
// write to disk and to quote back to the agent.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// batchReply summarizes one download batch for the user.
func batchReply(batch []model.Attachment) string {
	var saved, failed []string
	for _, att := range batch {
		if att.Path != "" {
			saved = append(saved, att.Filename)
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", att.Filename, att.Error))
		}
	}

	reply := msgAttachmentsSaved(len(saved), strings.Join(saved, ", "))
	if len(failed) > 0 {
		reply += "\nCould not save: " + strings.Join(failed, ", ") + "."
	}
	return reply
}

// attachmentSummary renders the saved-so-far list shown before confirmation.
func attachmentSummary(attachments []model.Attachment) string {
	saved := make([]string, 0, len(attachments))
	for _, att := range attachments {
		if att.Path != "" {
			saved = append(saved, "- "+att.Filename)
		}
	}
	if len(saved) == 0 {
		return ""
	}
	return fmt.Sprintf("Attachments to upload (%d):\n%s", len(saved), strings.Join(saved, "\n"))
}

// echoAttachments re-uploads the saved files so the user sees exactly what
// will be submitted.
func (f *Flow) echoAttachments(ctx context.Context, channelID string, sess *model.Session) {
	var files []messenger.File
	for _, att := range sess.Data.SavedAttachments() {
		content, err := os.ReadFile(att.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", att.Path).Msg("failed to read saved attachment")
			continue
		}
		files = append(files, messenger.File{
			Content:     content,
			Filename:    att.Filename,
			ContentType: att.ContentType,
		})
	}
	if len(files) == 0 {
		return
	}
	if err := f.messenger.SendFiles(ctx, channelID, files, msgAttachmentEchoLabel); err != nil {
		log.Warn().Err(err).Str("channelId", channelID).Msg("failed to echo attachments")
	}
}

// cleanupFiles removes the session's temp directory, if any.
func (f *Flow) cleanupFiles(sess *model.Session) {
	if sess.TempDir == "" {
		return
	}
	if err := os.RemoveAll(sess.TempDir); err != nil {
		log.Warn().Err(err).Str("dir", sess.TempDir).Msg("failed to remove attachment directory")
	}
	sess.TempDir = ""
}
