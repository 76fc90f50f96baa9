package workflow

import (
	"context"

	"scribe/internal/queue"
	"scribe/internal/services/whisperx"
)

// WhisperX adapts the WhisperX service to Transcriber.
func WhisperX(svc *whisperx.Service) Transcriber {
	return TranscriberFunc(func(ctx context.Context, path string) (queue.FileResult, error) {
		res, err := svc.Transcribe(ctx, path)
		if err != nil {
			return queue.FileResult{}, err
		}
		return queue.FileResult{Text: res.Text, Language: res.Language, Duration: res.Duration}, nil
	})
}
