package handmerge

import (
	"reflect"
	"testing"

	"github.com/railbird/handreel/pkg/models"
)

func TestCluster_MergesWithinThreshold(t *testing.T) {
	got := Cluster([]Span{{10, 20}, {15, 25}, {100, 110}}, 30)
	want := []Span{{10, 25}, {100, 110}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster = %v, want %v", got, want)
	}
}

func TestCluster_ThresholdBoundary(t *testing.T) {
	// Exactly threshold apart: not merged.
	got := Cluster([]Span{{0, 10}, {30, 40}}, 30)
	if len(got) != 2 {
		t.Errorf("spans exactly threshold apart merged: %v", got)
	}

	// One second inside the threshold: merged.
	got = Cluster([]Span{{0, 10}, {29, 40}}, 30)
	if len(got) != 1 {
		t.Errorf("spans within threshold not merged: %v", got)
	}
	if got[0].Start != 0 || got[0].End != 40 {
		t.Errorf("merged span should widen to earliest start and latest end, got %v", got[0])
	}
}

func TestCluster_Idempotent(t *testing.T) {
	input := []Span{{10, 20}, {15, 25}, {38, 42}, {100, 110}, {105, 107}}
	once := Cluster(input, 30)
	twice := Cluster(once, 30)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Cluster not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestCluster_WideningNeverNarrows(t *testing.T) {
	// A later candidate with an earlier end must not shrink the cluster.
	got := Cluster([]Span{{10, 50}, {12, 20}}, 30)
	if len(got) != 1 || got[0] != (Span{10, 50}) {
		t.Errorf("cluster narrowed: %v", got)
	}
}

func TestCluster_UnsortedInput(t *testing.T) {
	got := Cluster([]Span{{100, 110}, {15, 25}, {10, 20}}, 30)
	want := []Span{{10, 25}, {100, 110}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cluster = %v, want %v", got, want)
	}
}

func TestCluster_Empty(t *testing.T) {
	got := Cluster(nil, 30)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestMergeHands_RenumbersInOrder(t *testing.T) {
	hands := []models.HandWindow{
		{Number: 7, Start: "00:01:40", End: "00:01:50"}, // 100s
		{Number: 1, Start: "00:00:10", End: "00:00:20"}, // 10s
		{Number: 3, Start: "00:00:15", End: "00:00:25"}, // 15s, merges with 10s
	}

	got := MergeHands(hands, 30)
	want := []models.HandWindow{
		{Number: 1, Start: "00:00:10", End: "00:00:25"},
		{Number: 2, Start: "00:01:40", End: "00:01:50"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeHands = %v, want %v", got, want)
	}
}

func TestMergeHands_CrossSegmentOverlap(t *testing.T) {
	// Two detections of the same hand from overlapping segments, offset
	// by 10 seconds, collapse under the 30s cross-segment threshold.
	hands := []models.HandWindow{
		{Number: 1, Start: "00:29:55", End: "00:30:40"}, // t=1795 from segment 0
		{Number: 1, Start: "00:30:05", End: "00:30:45"}, // t=1805 from segment 1
	}

	got := MergeHands(hands, 30)
	if len(got) != 1 {
		t.Fatalf("expected 1 merged hand, got %d: %v", len(got), got)
	}
	if got[0].Start != "00:29:55" || got[0].End != "00:30:45" {
		t.Errorf("merged hand should widen to [00:29:55, 00:30:45], got %+v", got[0])
	}
}

func TestMergeHands_DropsUnparseable(t *testing.T) {
	hands := []models.HandWindow{
		{Number: 1, Start: "bogus", End: "00:00:20"},
		{Number: 2, Start: "00:01:00", End: "00:01:10"},
	}

	got := MergeHands(hands, 5)
	if len(got) != 1 || got[0].Start != "00:01:00" {
		t.Errorf("expected only the valid hand to survive, got %v", got)
	}
}

func TestMergeHands_Idempotent(t *testing.T) {
	hands := []models.HandWindow{
		{Number: 1, Start: "00:00:10", End: "00:00:20"},
		{Number: 2, Start: "00:00:15", End: "00:00:25"},
		{Number: 3, Start: "00:03:00", End: "00:03:30"},
	}
	once := MergeHands(hands, 30)
	twice := MergeHands(once, 30)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("MergeHands not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}
