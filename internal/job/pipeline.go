package job

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// generate runs the fan-out stage and the video-generation submission.
// The annotation analysis and the clean-frame edits run concurrently; the
// stage joins before prompt assembly, and a failure in any sub-call aborts
// the whole job with the successful results discarded.
func (s *Service) generate(ctx context.Context, req *Request) (operationRef, annotation string, err error) {
	var startFrame, endFrame []byte

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := s.gateway.AnalyzeImage(gctx, annotationAnalysisPrompt, req.StartingImage)
		if err != nil {
			return fmt.Errorf("analyze starting image: %w", err)
		}
		annotation = text
		return nil
	})

	g.Go(func() error {
		frame, err := s.gateway.EditImage(gctx, cleanStartFramePrompt, req.StartingImage)
		if err != nil {
			return fmt.Errorf("clean starting image: %w", err)
		}
		startFrame = frame
		return nil
	})

	if len(req.EndingImage) > 0 {
		g.Go(func() error {
			frame, err := s.gateway.EditImage(gctx, cleanEndFramePrompt, req.EndingImage)
			if err != nil {
				return fmt.Errorf("clean ending image: %w", err)
			}
			endFrame = frame
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", "", err
	}

	prompt := buildVideoPrompt(req.CustomPrompt, req.GlobalContext, annotation)

	operationRef, err = s.gateway.StartVideoGeneration(ctx, VideoParams{
		Prompt:          prompt,
		StartFrame:      startFrame,
		EndFrame:        endFrame,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		return "", "", fmt.Errorf("start video generation: %w", err)
	}

	return operationRef, annotation, nil
}
