/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artdao/internal/domain"
)

type fakeGen struct {
	mu       sync.Mutex
	keywords []string

	draftErr error
	imageErr error
	simErr   error

	// hold blocks GenerateDraft for the given intent until closed.
	hold    map[string]chan struct{}
	arrived chan string
}

func (f *fakeGen) GenerateDraft(ctx context.Context, intent string) (string, error) {
	if ch, ok := f.hold[intent]; ok {
		f.arrived <- intent
		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.draftErr != nil {
		return "", f.draftErr
	}
	return "Draft about " + intent, nil
}

func (f *fakeGen) GenerateImage(_ context.Context, keywords string) (string, error) {
	f.mu.Lock()
	f.keywords = append(f.keywords, keywords)
	f.mu.Unlock()
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return "https://img.example/" + keywords[:min(len(keywords), 5)] + ".png", nil
}

func (f *fakeGen) CheckSimilarity(context.Context, string) (domain.Similarity, error) {
	if f.simErr != nil {
		return domain.Similarity{}, f.simErr
	}
	return domain.Similarity{Score: 15, Message: "original enough"}, nil
}

func TestStagesInAnyOrder(t *testing.T) {
	ctx := context.Background()
	p := New(&fakeGen{}, Config{})

	sim, err := p.CheckSimilarity(ctx, "rainy neon city")
	require.NoError(t, err)
	assert.Equal(t, 15.0, sim.Score)
	assert.False(t, p.Eligible(), "similarity alone never makes a draft eligible")

	url, err := p.GenerateImage(ctx, "rainy neon city")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.False(t, p.Eligible())

	text, err := p.GenerateDraft(ctx, "rainy neon city")
	require.NoError(t, err)
	assert.Equal(t, "Draft about rainy neon city", text)

	d := p.Draft()
	assert.True(t, d.Eligible())
	assert.Equal(t, "rainy neon city", d.Intent)
	assert.Equal(t, url, d.ImageURL)
	require.NotNil(t, d.Similarity)
}

func TestStageFailureKeepsEarlierFields(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGen{}
	p := New(gen, Config{})

	_, err := p.GenerateDraft(ctx, "harbour at dawn")
	require.NoError(t, err)
	before := p.Draft()

	gen.imageErr = errors.New("quota exceeded")
	_, err = p.GenerateImage(ctx, "harbour at dawn")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageImage, se.Stage)
	assert.Equal(t, before, p.Draft())

	gen.draftErr = errors.New("model offline")
	_, err = p.GenerateDraft(ctx, "something else")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageDraft, se.Stage)
	assert.Equal(t, before, p.Draft())
}

func TestImagePolicy(t *testing.T) {
	ctx := context.Background()

	gen := &fakeGen{}
	p := New(gen, Config{ImagePolicy: ImageFromIntent})
	_, err := p.GenerateImage(ctx, "quiet forest")
	require.NoError(t, err)
	assert.Equal(t, []string{"quiet forest"}, gen.keywords)

	gen = &fakeGen{}
	p = New(gen, Config{ImagePolicy: ImageFromDraft})
	_, err = p.GenerateImage(ctx, "quiet forest")
	assert.ErrorIs(t, err, ErrDraftRequired)
	assert.Empty(t, gen.keywords, "no backend call without draft text")

	_, err = p.GenerateDraft(ctx, "quiet forest")
	require.NoError(t, err)
	_, err = p.GenerateImage(ctx, "quiet forest")
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft about quiet forest"}, gen.keywords)
}

func TestParseImagePolicy(t *testing.T) {
	for in, want := range map[string]ImagePolicy{"": ImageFromIntent, "intent": ImageFromIntent, " Draft ": ImageFromDraft} {
		got, err := ParseImagePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseImagePolicy("keywords")
	assert.Error(t, err)
}

func TestEmptyIntentRejected(t *testing.T) {
	p := New(&fakeGen{}, Config{})
	_, err := p.GenerateDraft(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOlderDraftCallIsSuperseded(t *testing.T) {
	gen := &fakeGen{
		hold:    map[string]chan struct{}{"first": make(chan struct{})},
		arrived: make(chan string, 1),
	}
	p := New(gen, Config{})

	errc := make(chan error)
	go func() {
		_, err := p.GenerateDraft(context.Background(), "first")
		errc <- err
	}()
	<-gen.arrived

	_, err := p.GenerateDraft(context.Background(), "second")
	require.NoError(t, err)
	close(gen.hold["first"])

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.Equal(t, "Draft about second", p.Draft().DraftText)
}

func TestResetDiscardsInFlight(t *testing.T) {
	gen := &fakeGen{
		hold:    map[string]chan struct{}{"slow": make(chan struct{})},
		arrived: make(chan string, 1),
	}
	p := New(gen, Config{})

	errc := make(chan error)
	go func() {
		_, err := p.GenerateDraft(context.Background(), "slow")
		errc <- err
	}()
	<-gen.arrived
	p.Reset()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("reset did not cancel the stage")
	}
	assert.Equal(t, Draft{}, p.Draft())
}

func TestRateLimitHonoursContext(t *testing.T) {
	p := New(&fakeGen{}, Config{RequestsPerMinute: 1})
	ctx := context.Background()
	_, err := p.CheckSimilarity(ctx, "one")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.CheckSimilarity(short, "two")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSimilarity, se.Stage)
}

func TestDraftIsACopy(t *testing.T) {
	p := New(&fakeGen{}, Config{})
	_, err := p.CheckSimilarity(context.Background(), "x")
	require.NoError(t, err)
	d := p.Draft()
	d.Similarity.Score = 99
	assert.Equal(t, 15.0, p.Draft().Similarity.Score)
}

func TestNearDuplicates(t *testing.T) {
	titles := []string{"Rainy Neon City", "Rainy neon cities", "Harbour mural", "rainy  neon city"}
	got := NearDuplicates("rainy neon city", titles)
	require.Len(t, got, 2)
	assert.Equal(t, Match{Title: "Rainy Neon City", Distance: 0}, got[0])
	assert.Equal(t, "Rainy neon cities", got[1].Title)

	assert.Empty(t, NearDuplicates("", titles))
	assert.Empty(t, NearDuplicates("completely unrelated", titles))
}
