package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/caption"
)

type transcribeFunc func(ctx context.Context, audioPath string) (*Result, error)

// holds the result of transcribing a chunk
type chunkResult struct {
	index    int
	language string
	segments []caption.Segment
	err      error
}

// runs transcribe over chunks with a bounded worker pool. Segment timestamps
// are shifted by each chunk's offset and the merged result keeps chunk
// order. The first failure cancels the remaining work. Silent chunks are
// skipped; ErrNoSpeech is returned only when no chunk produced words.
func transcribeChunks(
	ctx context.Context,
	chunks []audio.ChunkInfo,
	concurrency int,
	transcribe transcribeFunc,
) (*Result, error) {
	if len(chunks) == 0 {
		return nil, ErrNoSpeech
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan audio.ChunkInfo)
	resultChan := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range workChan {
				if ctx.Err() != nil {
					return
				}
				res, err := transcribe(ctx, chunk.Path)
				r := chunkResult{index: chunk.Index, err: err}
				if err == nil {
					r.language = res.Language
					r.segments = make([]caption.Segment, len(res.Segments))
					for i, seg := range res.Segments {
						r.segments[i] = seg.Shift(chunk.StartTime)
					}
				}
				resultChan <- r
			}
		}()
	}

	go func() {
		defer close(workChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case workChan <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]chunkResult, 0, len(chunks))
	var firstErr error
	for r := range resultChan {
		switch {
		case r.err == nil:
			results = append(results, r)
		case errors.Is(r.err, ErrNoSpeech):
		case firstErr == nil:
			firstErr = fmt.Errorf("chunk %d failed: %w", r.index, r.err)
			cancel()
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].index < results[j].index
	})

	merged := &Result{Duration: chunks[len(chunks)-1].EndTime}
	for _, r := range results {
		merged.Segments = append(merged.Segments, r.segments...)
		if merged.Language == "" {
			merged.Language = r.language
		}
	}
	if merged.WordCount() == 0 {
		return nil, ErrNoSpeech
	}
	return merged, nil
}
