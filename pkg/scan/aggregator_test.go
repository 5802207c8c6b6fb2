package scan_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pypi-data/cli/pkg/scan"
)

func sampleResults() []scan.Result {
	return []scan.Result{
		{Index: 2, Path: "/fleet/b", Commit: "c2", Matched: 1, TotalSeen: 2, PercentSeen: pct(50), NonMatched: 1, TotalExcluded: 1, PercentExcluded: pct(100)},
		{Index: 0, Path: "/fleet/a", Commit: "c0", Error: "commit not found: c0", ErrorKind: scan.KindCommitNotFound},
		{Index: 1, Path: "/fleet/a", Commit: "c1"},
	}
}

func TestAggregatorOrder(t *testing.T) {
	t.Parallel()

	agg := scan.NewAggregator(3)
	agg.Add(sampleResults()...)

	completion, err := agg.Results(scan.OrderCompletion)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, indexes(completion))

	byIndex, err := agg.Results(scan.OrderIndex)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indexes(byIndex))

	// Sorting a copy leaves the collected order alone.
	again, err := agg.Results("")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, indexes(again))

	_, err = agg.Results("random")
	require.ErrorIs(t, err, scan.ErrUnsupportedOrder)
}

func indexes(results []scan.Result) []int {
	out := make([]int, len(results))
	for i, result := range results {
		out[i] = result.Index
	}

	return out
}

func TestAggregatorSummary(t *testing.T) {
	t.Parallel()

	agg := scan.NewAggregator(0)
	agg.Add(sampleResults()...)
	agg.Add(scan.Result{Index: 3, ErrorKind: scan.KindCommitNotFound}, scan.Result{Index: 4, ErrorKind: scan.KindTimeout})

	summary := agg.Summary()

	assert.Equal(t, 5, summary.Jobs)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, map[scan.ErrorKind]int{scan.KindCommitNotFound: 2, scan.KindTimeout: 1}, summary.ByKind)
	assert.Equal(t, int64(2), summary.TotalSeen)
	assert.Equal(t, int64(1), summary.TotalExcluded)
}

func TestEncodeJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, scan.Encode(&buf, sampleResults(), scan.FormatJSON))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)

	ok := decoded[0]
	assert.Equal(t, "/fleet/b", ok["path"])
	assert.InDelta(t, 50.0, ok["percent_seen"], 1e-9)
	assert.InDelta(t, 1.0, ok["matched"], 1e-9)
	assert.NotContains(t, ok, "error")
	assert.NotContains(t, ok, "Index")

	failed := decoded[1]
	assert.Equal(t, "commit_not_found", failed["error_kind"])
	assert.Contains(t, failed, "percent_seen")
	assert.Nil(t, failed["percent_seen"], "undefined percentage is null")

	empty := decoded[2]
	assert.Nil(t, empty["percent_excluded"])
	assert.NotContains(t, empty, "error_kind")
}

func TestEncodeEmptyIsArray(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, scan.Encode(&buf, nil, ""))
	assert.JSONEq(t, "[]", buf.String())
}

func TestEncodeYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, scan.Encode(&buf, sampleResults(), scan.FormatYAML))

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "/fleet/b", decoded[0]["path"])
	assert.Equal(t, 2, decoded[0]["total_seen"])
	assert.Nil(t, decoded[1]["percent_seen"])
	assert.Equal(t, "commit_not_found", decoded[1]["error_kind"])
}

func TestEncodeUnsupported(t *testing.T) {
	t.Parallel()

	err := scan.Encode(&bytes.Buffer{}, nil, "csv")
	require.ErrorIs(t, err, scan.ErrUnsupportedFormat)
}
