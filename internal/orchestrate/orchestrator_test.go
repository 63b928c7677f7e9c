package orchestrate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ppiankov/claimcheck/internal/jsonx"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	verify    any
	verifyErr error
	cred      any
	credErr   error
	assess    any
	assessErr error
	calls     []string
	credReq   SourceCredRequest
	verifyReq VerifyRequest
	assessReq AssessRequest
}

func (f *fakeClient) Extract(context.Context, string) (any, error) {
	f.calls = append(f.calls, "extract")
	return nil, errors.New("not used")
}

func (f *fakeClient) Verify(_ context.Context, req VerifyRequest) (any, error) {
	f.calls = append(f.calls, "verify")
	f.verifyReq = req
	return f.verify, f.verifyErr
}

func (f *fakeClient) SourceCredibility(_ context.Context, req SourceCredRequest) (any, error) {
	f.calls = append(f.calls, "source-cred")
	f.credReq = req
	return f.cred, f.credErr
}

func (f *fakeClient) Assess(_ context.Context, req AssessRequest) (any, error) {
	f.calls = append(f.calls, "assess")
	f.assessReq = req
	return f.assess, f.assessErr
}

// memorySink stores claims by id and records every merge
type memorySink struct {
	mu     sync.Mutex
	claims map[int]*model.ProcessedClaim
	merges int
}

func newMemorySink(claims ...model.ProcessedClaim) *memorySink {
	s := &memorySink{claims: make(map[int]*model.ProcessedClaim)}
	for i := range claims {
		c := claims[i]
		s.claims[c.ID] = &c
	}
	return s
}

func (s *memorySink) MergeClaim(_ context.Context, id int, fn func(*model.ProcessedClaim)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return errors.New("claim not found")
	}
	fn(c)
	s.merges++
	return nil
}

func obj(t *testing.T, s string) any {
	t.Helper()
	v, err := jsonx.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func testClaim() model.ProcessedClaim {
	return model.ProcessedClaim{
		ExtractedClaim: model.ExtractedClaim{ID: 1, ShortClaim: "The Eiffel Tower is in Rome"},
		Sources: []model.SourceCredibility{
			{Domain: "a.com", Rationale: "known"},
			{Domain: "b.com", Title: "B", URL: "https://b.com/x"},
		},
	}
}

func TestRun_Success(t *testing.T) {
	client := &fakeClient{
		verify: obj(t, `{
			"claim_checks": {"logical_score": 0.2, "short_reason": "geography"},
			"snippet_checks": [{"domain": "a.com"}, {"domain": "c.com"}],
			"explanation": "verify says no"
		}`),
		cred: obj(t, `{"sources": [
			{"domain": "a.com", "domain_cred_score": 0.9, "trust_labels": ["reliable"], "rationale": "r"},
			{"domain": "c.com", "domain_cred_score": 0.3}
		]}`),
		assess: obj(t, `{
			"verdict": "False",
			"confidence": 0.85,
			"supporting_evidence": [],
			"refuting_evidence": [{"domain": "wiki.org", "url": "https://wiki.org/e", "rationale": "Paris"}]
		}`),
	}
	sink := newMemorySink(testClaim())

	result, err := New(client, Options{}, nil).Run(context.Background(), testClaim(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"verify", "source-cred", "assess"}, client.calls)
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, client.credReq.Domains)
	assert.Equal(t, "Verify claim: The Eiffel Tower is in Rome", client.assessReq.Query)

	require.Len(t, client.verifyReq.Snippets, 2)
	assert.Equal(t, Snippet{Title: "a.com", Domain: "a.com", Snippet: "known"}, client.verifyReq.Snippets[0])
	assert.Equal(t, Snippet{Title: "B", URL: "https://b.com/x", Domain: "b.com"}, client.verifyReq.Snippets[1])

	assert.Equal(t, "The Eiffel Tower is in Rome", result.Claim)
	assert.Equal(t, "False", result.Verdict)
	assert.Equal(t, 85, result.Confidence)
	assert.Equal(t, "verify says no", result.Explanation)
	assert.Empty(t, result.SupportingEvidence)
	assert.Equal(t, []model.EvidenceItem{{Title: "wiki.org", URL: "https://wiki.org/e", Snippet: "Paris"}}, result.RefutingEvidence)

	stored := sink.claims[1]
	assert.Same(t, result, stored.EvidenceResult)
	require.NotNil(t, stored.ClaimChecks)
	assert.Equal(t, 0.2, stored.ClaimChecks.LogicalScore)
	assert.Equal(t, "geography", stored.ClaimChecks.ShortReason)
	require.Len(t, stored.Sources, 2)
	assert.Equal(t, 0.9, stored.Sources[0].DomainCredScore)
	assert.Equal(t, "c.com", stored.Sources[1].Domain)

	// verify checks, sources, final result
	assert.Equal(t, 3, sink.merges)
}

func TestRun_VerifyFailureStopsSequence(t *testing.T) {
	client := &fakeClient{verifyErr: &HTTPError{StatusCode: 502, Message: `{"error":"bad gateway"}`}}
	sink := newMemorySink(testClaim())

	result, err := New(client, Options{}, nil).Run(context.Background(), testClaim(), sink)
	require.Error(t, err)

	assert.Equal(t, []string{"verify"}, client.calls)
	assert.Equal(t, model.VerdictError, result.Verdict)
	assert.Equal(t, 0, result.Confidence)
	assert.Equal(t, `{"error":"bad gateway"}`, result.Explanation)
	assert.Empty(t, result.SupportingEvidence)
	assert.Empty(t, result.RefutingEvidence)
	assert.Equal(t, model.VerdictError, sink.claims[1].EvidenceResult.Verdict)
}

func TestRun_AssessFailure(t *testing.T) {
	client := &fakeClient{
		verify:    obj(t, `{"claim_checks": {"logical_score": 0.5}}`),
		assessErr: errors.New("/api/claim-assess timed out after 30s"),
	}
	claim := testClaim()
	claim.Sources = nil
	sink := newMemorySink(claim)

	result, err := New(client, Options{}, nil).Run(context.Background(), claim, sink)
	require.Error(t, err)

	assert.Equal(t, []string{"verify", "assess"}, client.calls)
	assert.Equal(t, "/api/claim-assess timed out after 30s", result.Explanation)
	// partial verify result stays visible
	require.NotNil(t, sink.claims[1].ClaimChecks)
	assert.Equal(t, 0.5, sink.claims[1].ClaimChecks.LogicalScore)
}

func TestRun_SkipsSourceCredWithoutDomains(t *testing.T) {
	client := &fakeClient{
		verify: "plain text verification",
		assess: obj(t, `{"verdict": "Mostly true", "confidence": 72.4}`),
	}
	claim := testClaim()
	claim.Sources = nil
	sink := newMemorySink(claim)

	result, err := New(client, Options{}, nil).Run(context.Background(), claim, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"verify", "assess"}, client.calls)
	assert.Equal(t, 72, result.Confidence)
	assert.Equal(t, "", result.Explanation)
	assert.Nil(t, sink.claims[1].ClaimChecks)
}

func TestRun_SourceCredFailureEndsRun(t *testing.T) {
	client := &fakeClient{
		verify:  obj(t, `{}`),
		credErr: errors.New("source-cred down"),
		assess:  obj(t, `{"verdict": "Mixed"}`),
	}
	sink := newMemorySink(testClaim())

	result, err := New(client, Options{}, nil).Run(context.Background(), testClaim(), sink)
	require.Error(t, err)

	assert.Equal(t, []string{"verify", "source-cred"}, client.calls)
	assert.Equal(t, model.VerdictError, result.Verdict)
	assert.Equal(t, 0, result.Confidence)
	assert.Equal(t, "source-cred down", result.Explanation)
	require.NotNil(t, sink.claims[1].EvidenceResult)
	assert.Equal(t, model.VerdictError, sink.claims[1].EvidenceResult.Verdict)
}

func TestRun_SourceCredFailureTolerated(t *testing.T) {
	client := &fakeClient{
		verify:  obj(t, `{}`),
		credErr: errors.New("source-cred down"),
		assess:  obj(t, `{"verdict": "Mixed"}`),
	}
	sink := newMemorySink(testClaim())

	result, err := New(client, Options{TolerateSourceCredFailure: true}, nil).Run(context.Background(), testClaim(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"verify", "source-cred", "assess"}, client.calls)
	assert.Equal(t, "Mixed", result.Verdict)
	assert.Equal(t, model.DefaultConfidence, result.Confidence)
	assert.Equal(t, testClaim().Sources, sink.claims[1].Sources)
}

func TestRun_SourceCredWithoutSourcesKeepsCurrent(t *testing.T) {
	client := &fakeClient{
		verify: obj(t, `{}`),
		cred:   obj(t, `{"note": "nothing"}`),
		assess: obj(t, `{}`),
	}
	sink := newMemorySink(testClaim())

	result, err := New(client, Options{}, nil).Run(context.Background(), testClaim(), sink)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictInsufficientEvidence, result.Verdict)
	assert.Equal(t, testClaim().Sources, sink.claims[1].Sources)
}

func TestRun_ClaimChecksMergeKeepsExistingFields(t *testing.T) {
	claim := testClaim()
	claim.Sources = nil
	claim.ClaimChecks = &model.ClaimCheck{LogicalIssue: "from extractor", TonalityScore: 0.7}
	client := &fakeClient{
		verify: obj(t, `{"claim_checks": {"tonality_score": 0.1}}`),
		assess: obj(t, `{}`),
	}
	sink := newMemorySink(claim)

	_, err := New(client, Options{}, nil).Run(context.Background(), claim, sink)
	require.NoError(t, err)

	cc := sink.claims[1].ClaimChecks
	assert.Equal(t, "from extractor", cc.LogicalIssue)
	assert.Equal(t, 0.1, cc.TonalityScore)
}

func TestDomains(t *testing.T) {
	sources := []model.SourceCredibility{{Domain: "a.com"}, {Domain: ""}, {Domain: "b.com"}}
	checks := []any{
		map[string]any{"domain": "a.com"},
		map[string]any{"domain": "c.com"},
		map[string]any{"domain": nil},
		"junk",
	}
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, Domains(sources, checks))
	assert.Empty(t, Domains(nil, nil))
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		raw  any
		want int
	}{
		{0.85, 85},
		{85.0, 85},
		{1.0, 100},
		{0.005, 1},
		{0.0, 0},
		{42.5, 43},
		{250.0, 100},
		{-3.0, 0},
		{"0.85", 30},
		{nil, 30},
		{map[string]any{}, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Confidence(tt.raw), "%v", tt.raw)
	}
}

func TestEvidenceItems(t *testing.T) {
	items := evidenceItems([]any{
		map[string]any{"title": "T", "url": "u", "snippet": "s", "rationale": "r"},
		map[string]any{"domain": "d.org", "rationale": "r"},
		"not an object",
	})
	assert.Equal(t, []model.EvidenceItem{
		{Title: "T", URL: "u", Snippet: "s"},
		{Title: "d.org", Snippet: "r"},
		{},
	}, items)
	assert.Equal(t, []model.EvidenceItem{}, evidenceItems("nope"))
}
