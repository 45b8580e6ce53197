package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFiles(t *testing.T) {
	views := []transfer.FileView{
		{ID: "0d5cb5e1-1111", TransferID: "aa11", Name: "a.bin", Status: transfer.StatusPaused},
		{ID: "0d5cb5e1-2222", TransferID: "aa11", Name: "b.bin", Status: transfer.StatusError},
		{ID: "7f00aa12-3333", TransferID: "bb22", Name: "c.bin", Status: transfer.StatusPaused},
		{ID: "99999999-4444", TransferID: "bb22", Name: "d.bin", Status: transfer.StatusCompleted},
	}
	names := func(vs []transfer.FileView) []string {
		var out []string
		for _, v := range vs {
			out = append(out, v.Name)
		}
		return out
	}

	tests := []struct {
		name    string
		ids     []string
		want    []string
		wantErr string
	}{
		{name: "all unfinished", ids: nil, want: []string{"a.bin", "b.bin", "c.bin"}},
		{name: "exact file", ids: []string{"0d5cb5e1-2222"}, want: []string{"b.bin"}},
		{name: "file prefix", ids: []string{"7f00"}, want: []string{"c.bin"}},
		{name: "transfer id", ids: []string{"aa11"}, want: []string{"a.bin", "b.bin"}},
		{name: "transfer prefix skips completed", ids: []string{"bb"}, want: []string{"c.bin"}},
		{name: "duplicates collapse", ids: []string{"aa11", "0d5cb5e1-1111"}, want: []string{"a.bin", "b.bin"}},
		{name: "ambiguous prefix", ids: []string{"0d5cb5e1"}, wantErr: "ambiguous"},
		{name: "completed is not selectable", ids: []string{"99999999-4444"}, wantErr: "no unfinished"},
		{name: "unknown", ids: []string{"zz"}, wantErr: "no unfinished"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectFiles(views, tt.ids)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestPrintOutcomes(t *testing.T) {
	var out bytes.Buffer
	err := printOutcomes(&out, []resumeOutcome{
		{name: "a.bin", status: transfer.StatusCompleted, downloadURL: "http://drop/d/aa11"},
		{name: "b.bin", status: transfer.StatusPaused, err: transfer.ErrPaused},
		{name: "c.bin", status: transfer.StatusError, err: fmt.Errorf("%w: transfer expired", transfer.ErrSessionInvalid)},
		{name: "d.bin", status: transfer.StatusCompleted, restarted: true, downloadURL: "http://drop/d/cc33"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, transfer.ErrSessionInvalid))

	text := stripANSI(out.String())
	assert.Contains(t, text, "completed a.bin http://drop/d/aa11")
	assert.Contains(t, text, "paused b.bin")
	assert.Contains(t, text, "error c.bin")
	assert.Contains(t, text, "completed d.bin (new transfer) http://drop/d/cc33")
	assert.Contains(t, text, "--restart")
}

func TestPrintOutcomes_AllDone(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printOutcomes(&out, []resumeOutcome{
		{name: "a.bin", status: transfer.StatusCompleted},
	}))
	assert.NotContains(t, out.String(), "--restart")
}
