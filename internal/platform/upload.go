package platform

import (
	"context"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// FileProcessingMaxAttempts and FileProcessingInterval bound the polling
// loop after an upload (spec §4.8.2 step 6: "bounded by the platform's
// file-processing retry count, ~10s").
const (
	FileProcessingMaxAttempts = 10
	FileProcessingInterval    = time.Second
)

// WaitForFileProcessing polls FilesInfo until the file reports a usable
// mime type (State==Ready), or the attempt budget / deadline is
// exhausted, whichever comes first.
func WaitForFileProcessing(ctx context.Context, client Client, fileID string) (FileInfo, error) {
	deadline := time.Now().Add(FileProcessingMaxAttempts * FileProcessingInterval)
	var last FileInfo
	for attempt := 0; attempt < FileProcessingMaxAttempts; attempt++ {
		info, err := client.FilesInfo(ctx, fileID)
		if err != nil {
			return FileInfo{}, errs.Wrap(errs.UpstreamTransient, "poll file processing", err).WithField("file_id", fileID)
		}
		last = info
		if info.State == FileProcessingReady && info.MimeType != "" {
			return info, nil
		}
		if info.State == FileProcessingFailed {
			return FileInfo{}, errs.New(errs.UpstreamRefused, "file processing failed").WithField("file_id", fileID)
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return FileInfo{}, errs.Wrap(errs.UpstreamTransient, "context cancelled while polling file processing", ctx.Err())
		case <-time.After(FileProcessingInterval):
		}
	}
	return FileInfo{}, errs.New(errs.UpstreamTransient, "file processing did not complete in time").WithField("file_id", fileID).WithField("last_state", string(last.State))
}
