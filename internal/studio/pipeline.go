/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package studio runs the creative-generation stages (draft text, image,
// originality check) against a user intent and keeps the resulting draft
// until it is handed off to proposal authoring.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"artdao/internal/domain"
	applog "artdao/internal/log"
)

// Stage names one generation step.
type Stage string

const (
	StageDraft      Stage = "draft"
	StageImage      Stage = "image"
	StageSimilarity Stage = "similarity"
)

var (
	// ErrDraftRequired is returned by GenerateImage under ImageFromDraft when
	// no draft text exists yet.
	ErrDraftRequired = errors.New("studio: image generation needs draft text first")
	// ErrSuperseded means a newer call of the same stage, or Abandon/Reset,
	// made this result obsolete. The draft was not changed.
	ErrSuperseded = errors.New("studio: result superseded")
	// ErrEmptyInput is returned when the text sent to a stage is blank.
	ErrEmptyInput = errors.New("studio: empty input")
)

// StageError is a terminal failure of one stage. Fields produced by other
// stages are kept.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("studio %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ImagePolicy selects the keywords sent to image generation.
type ImagePolicy string

const (
	// ImageFromIntent sends the intent; no other stage needs to run first.
	ImageFromIntent ImagePolicy = "intent"
	// ImageFromDraft sends the generated draft text.
	ImageFromDraft ImagePolicy = "draft"
)

// ParseImagePolicy accepts "intent" or "draft"; empty means ImageFromIntent.
func ParseImagePolicy(s string) (ImagePolicy, error) {
	switch p := ImagePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ImageFromIntent:
		return ImageFromIntent, nil
	case ImageFromDraft:
		return ImageFromDraft, nil
	default:
		return "", fmt.Errorf("unknown image policy %q", s)
	}
}

// Draft is the incrementally built creative draft.
type Draft struct {
	Intent     string
	DraftText  string
	ImageURL   string
	Similarity *domain.Similarity
}

// Eligible reports whether both draft text and image are present.
// Similarity never affects eligibility.
func (d Draft) Eligible() bool { return d.DraftText != "" && d.ImageURL != "" }

func (d Draft) clone() Draft {
	if d.Similarity != nil {
		s := *d.Similarity
		d.Similarity = &s
	}
	return d
}

// Generator is the backend side of the stages. *backend.Client implements it.
type Generator interface {
	GenerateDraft(ctx context.Context, intent string) (string, error)
	GenerateImage(ctx context.Context, keywords string) (string, error)
	CheckSimilarity(ctx context.Context, topic string) (domain.Similarity, error)
}

// Config tunes the pipeline.
type Config struct {
	ImagePolicy ImagePolicy
	// RequestsPerMinute limits generation calls across all stages; 0 disables.
	RequestsPerMinute int
}

type stageState struct {
	issued    uint64
	abandoned uint64
	cancels   map[uint64]context.CancelFunc
}

// Pipeline owns one Draft. Stages may run concurrently and in any order.
type Pipeline struct {
	gen     Generator
	policy  ImagePolicy
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.Mutex
	draft  Draft
	stages map[Stage]*stageState
}

// New returns a pipeline with an empty draft.
func New(gen Generator, cfg Config) *Pipeline {
	p := &Pipeline{
		gen:    gen,
		policy: cfg.ImagePolicy,
		log:    applog.WithComponent("studio"),
		stages: map[Stage]*stageState{},
	}
	if p.policy == "" {
		p.policy = ImageFromIntent
	}
	if cfg.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), min(cfg.RequestsPerMinute, 3))
	}
	for _, s := range []Stage{StageDraft, StageImage, StageSimilarity} {
		p.stages[s] = &stageState{cancels: map[uint64]context.CancelFunc{}}
	}
	return p
}

// Policy returns the configured image policy.
func (p *Pipeline) Policy() ImagePolicy { return p.policy }

// SetIntent replaces the intent without touching generated fields.
func (p *Pipeline) SetIntent(intent string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft.Intent = intent
}

// Draft returns a copy of the current draft.
func (p *Pipeline) Draft() Draft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft.clone()
}

// Eligible reports whether the current draft can be handed off.
func (p *Pipeline) Eligible() bool { return p.Draft().Eligible() }

// GenerateDraft asks the backend to expand intent into draft text.
func (p *Pipeline) GenerateDraft(ctx context.Context, intent string) (string, error) {
	if strings.TrimSpace(intent) == "" {
		return "", &StageError{Stage: StageDraft, Err: ErrEmptyInput}
	}
	return run(p, ctx, StageDraft, func(ctx context.Context) (string, error) {
		return p.gen.GenerateDraft(ctx, intent)
	}, func(d *Draft, text string) {
		d.Intent = intent
		d.DraftText = text
	})
}

// GenerateImage generates an image. The keywords are the intent or the
// current draft text depending on the image policy.
func (p *Pipeline) GenerateImage(ctx context.Context, intent string) (string, error) {
	keywords := intent
	if p.policy == ImageFromDraft {
		p.mu.Lock()
		keywords = p.draft.DraftText
		p.mu.Unlock()
		if keywords == "" {
			return "", &StageError{Stage: StageImage, Err: ErrDraftRequired}
		}
	}
	if strings.TrimSpace(keywords) == "" {
		return "", &StageError{Stage: StageImage, Err: ErrEmptyInput}
	}
	return run(p, ctx, StageImage, func(ctx context.Context) (string, error) {
		return p.gen.GenerateImage(ctx, keywords)
	}, func(d *Draft, url string) {
		d.Intent = intent
		d.ImageURL = url
	})
}

// CheckSimilarity runs the originality check. It is informational only.
func (p *Pipeline) CheckSimilarity(ctx context.Context, intent string) (domain.Similarity, error) {
	if strings.TrimSpace(intent) == "" {
		return domain.Similarity{}, &StageError{Stage: StageSimilarity, Err: ErrEmptyInput}
	}
	return run(p, ctx, StageSimilarity, func(ctx context.Context) (domain.Similarity, error) {
		return p.gen.CheckSimilarity(ctx, intent)
	}, func(d *Draft, s domain.Similarity) {
		d.Intent = intent
		d.Similarity = &s
	})
}

// run issues a generation for stage, and applies the result only if no newer
// call of the same stage was issued and the stage was not abandoned meanwhile.
func run[T any](p *Pipeline, ctx context.Context, stage Stage, call func(context.Context) (T, error), apply func(*Draft, T)) (T, error) {
	var zero T
	l := applog.WithOperation(p.log, string(stage))

	p.mu.Lock()
	st := p.stages[stage]
	st.issued++
	gen := st.issued
	cctx, cancel := context.WithCancel(ctx)
	st.cancels[gen] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(st.cancels, gen)
		p.mu.Unlock()
		cancel()
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(cctx); err != nil {
			return zero, &StageError{Stage: stage, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	start := time.Now()
	v, err := call(cctx)
	if err != nil {
		p.mu.Lock()
		stale := gen <= st.abandoned
		p.mu.Unlock()
		if stale {
			return zero, ErrSuperseded
		}
		l.Warn("stage failed", slog.String("err", err.Error()))
		return zero, &StageError{Stage: stage, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != st.issued || gen <= st.abandoned {
		l.Debug("discarding stale result", slog.Uint64("gen", gen), slog.Uint64("latest", st.issued))
		return zero, ErrSuperseded
	}
	apply(&p.draft, v)
	l.Info("stage completed", slog.Duration("took", time.Since(start)))
	return v, nil
}

// Abandon cancels all in-flight stages; their results are discarded.
func (p *Pipeline) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonLocked()
}

func (p *Pipeline) abandonLocked() {
	for _, st := range p.stages {
		st.abandoned = st.issued
		for gen, cancel := range st.cancels {
			cancel()
			delete(st.cancels, gen)
		}
	}
}

// Reset abandons in-flight stages and clears the draft.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonLocked()
	p.draft = Draft{}
}
