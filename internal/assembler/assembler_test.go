package assembler

import (
	"testing"

	"github.com/litetable/litetable-read/litetable"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

// feed applies chunks in order and collects every committed row.
func feed(t *testing.T, a *Assembler, chunks []*litetable.CellChunk) ([]*litetable.Row, error) {
	t.Helper()
	var rows []*litetable.Row
	for _, c := range chunks {
		row, err := a.Process(c)
		if err != nil {
			return rows, err
		}
		if row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func TestAssembler_Process(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		lastEmittedKey string
		chunks         []*litetable.CellChunk
		wantRows       []*litetable.Row
		wantErr        string
	}{
		"single chunk commits a full cell": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("status"),
					Timestamp: 1111,
					Value:     []byte("ok"),
					CommitRow: true,
				},
			},
			wantRows: []*litetable.Row{
				{
					Key: "row1",
					Columns: map[string]litetable.VersionedQualifier{
						"main": {
							"status": {{Value: []byte("ok"), Timestamp: 1111}},
						},
					},
				},
			},
		},
		"commit with row key only yields an empty row": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", CommitRow: true},
			},
			wantRows: []*litetable.Row{
				{Key: "row1", Columns: map[string]litetable.VersionedQualifier{}},
			},
		},
		"value split across three chunks reassembles byte for byte": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Timestamp: 2222,
					Value:     []byte("abcd"),
					ValueSize: 10,
				},
				{Value: []byte("efgh")},
				{Value: []byte("ij"), CommitRow: true},
			},
			wantRows: []*litetable.Row{
				{
					Key: "row1",
					Columns: map[string]litetable.VersionedQualifier{
						"main": {
							"blob": {{Value: []byte("abcdefghij"), Timestamp: 2222}},
						},
					},
				},
			},
		},
		"reset discards accumulated cells and the next row starts clean": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("a"),
					Timestamp: 1,
					Value:     []byte("stale"),
				},
				{ResetRow: true},
				{
					RowKey:    "row2",
					Family:    strPtr("main"),
					Qualifier: strPtr("b"),
					Timestamp: 2,
					Value:     []byte("fresh"),
					CommitRow: true,
				},
			},
			wantRows: []*litetable.Row{
				{
					Key: "row2",
					Columns: map[string]litetable.VersionedQualifier{
						"main": {
							"b": {{Value: []byte("fresh"), Timestamp: 2}},
						},
					},
				},
			},
		},
		"reset mid split value drops the buffer too": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Value:     []byte("part"),
					ValueSize: 8,
				},
				{ResetRow: true},
				{RowKey: "row2", CommitRow: true},
			},
			wantRows: []*litetable.Row{
				{Key: "row2", Columns: map[string]litetable.VersionedQualifier{}},
			},
		},
		"multiple cells across families and qualifiers keep delivery order": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("status"),
					Timestamp: 30,
					Value:     []byte("new"),
				},
				{Timestamp: 20, Value: []byte("old")},
				{
					Family:    strPtr("meta"),
					Qualifier: strPtr("owner"),
					Timestamp: 30,
					Value:     []byte("svc"),
					CommitRow: true,
				},
			},
			wantRows: []*litetable.Row{
				{
					Key: "row1",
					Columns: map[string]litetable.VersionedQualifier{
						"main": {
							"status": {
								{Value: []byte("new"), Timestamp: 30},
								{Value: []byte("old"), Timestamp: 20},
							},
						},
						"meta": {
							"owner": {{Value: []byte("svc"), Timestamp: 30}},
						},
					},
				},
			},
		},
		"labels are carried onto the cell": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("a"),
					Timestamp: 5,
					Labels:    []string{"flagged"},
					Value:     []byte("v"),
					CommitRow: true,
				},
			},
			wantRows: []*litetable.Row{
				{
					Key: "row1",
					Columns: map[string]litetable.VersionedQualifier{
						"main": {
							"a": {{Value: []byte("v"), Timestamp: 5, Labels: []string{"flagged"}}},
						},
					},
				},
			},
		},
		"commit while a split value is short of its declared size": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Value:     []byte("abcd"),
					ValueSize: 10,
				},
				{Value: []byte("efgh"), CommitRow: true},
			},
			wantErr: "still incomplete",
		},
		"commit on the same chunk that opens a split value": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Value:     []byte("ab"),
					ValueSize: 4,
					CommitRow: true,
				},
			},
			wantErr: "still incomplete",
		},
		"split value overflowing its declared size": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Value:     []byte("abcd"),
					ValueSize: 6,
				},
				{Value: []byte("efgh")},
			},
			wantErr: "exceeds its declared size",
		},
		"cursor change in the middle of a split value": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Value:     []byte("abcd"),
					ValueSize: 10,
				},
				{Qualifier: strPtr("other"), Value: []byte("efgh")},
			},
			wantErr: "middle of a split value",
		},
		"reset with no row in progress": {
			chunks:  []*litetable.CellChunk{{ResetRow: true}},
			wantErr: "no row in progress",
		},
		"reset chunk carrying data": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", Family: strPtr("main"), Qualifier: strPtr("a"), Value: []byte("v")},
				{ResetRow: true, Value: []byte("x")},
			},
			wantErr: "carries row data",
		},
		"first chunk without a row key": {
			chunks: []*litetable.CellChunk{
				{Family: strPtr("main"), Qualifier: strPtr("a"), Value: []byte("v")},
			},
			wantErr: "no row key",
		},
		"row key does not increase": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row2", CommitRow: true},
				{RowKey: "row1", CommitRow: true},
			},
			wantErr: "does not increase",
		},
		"row key at or below the resume seed": {
			lastEmittedKey: "row5",
			chunks: []*litetable.CellChunk{
				{RowKey: "row5", CommitRow: true},
			},
			wantErr: "does not increase",
		},
		"row key changes without a commit": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", Family: strPtr("main"), Qualifier: strPtr("a"), Value: []byte("v")},
				{RowKey: "row2", Value: []byte("w")},
			},
			wantErr: "without a commit",
		},
		"chunk that advances nothing": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", Family: strPtr("main"), Qualifier: strPtr("a"), Value: []byte("v")},
				{},
			},
			wantErr: "advances nothing",
		},
		"family set without a qualifier": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", Family: strPtr("main"), Value: []byte("v")},
			},
			wantErr: "without a qualifier",
		},
		"qualifier set before any family": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", Qualifier: strPtr("a"), Value: []byte("v")},
			},
			wantErr: "before any family",
		},
		"value before any qualifier": {
			chunks: []*litetable.CellChunk{
				{RowKey: "row1", Value: []byte("v")},
			},
			wantErr: "before any qualifier",
		},
		"declared size changes mid cell": {
			chunks: []*litetable.CellChunk{
				{
					RowKey:    "row1",
					Family:    strPtr("main"),
					Qualifier: strPtr("blob"),
					Value:     []byte("ab"),
					ValueSize: 8,
				},
				{Value: []byte("cd"), ValueSize: 6},
			},
			wantErr: "size changed",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			a := New(tc.lastEmittedKey)
			rows, err := feed(t, a, tc.chunks)

			if tc.wantErr != "" {
				req.Error(err)
				req.ErrorIs(err, litetable.ErrProtocolViolation)
				req.Contains(err.Error(), tc.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tc.wantRows, rows)
		})
	}
}

func TestAssembler_MultipleRows(t *testing.T) {
	t.Parallel()
	req := require.New(t)

	a := New("")
	chunks := []*litetable.CellChunk{
		{RowKey: "a", Family: strPtr("f"), Qualifier: strPtr("q"), Timestamp: 1, Value: []byte("1"), CommitRow: true},
		{RowKey: "b", Family: strPtr("f"), Qualifier: strPtr("q"), Timestamp: 2, Value: []byte("2"), CommitRow: true},
		{RowKey: "c", CommitRow: true},
	}

	rows, err := feed(t, a, chunks)
	req.NoError(err)
	req.Len(rows, 3)
	req.Equal("a", rows[0].Key)
	req.Equal("b", rows[1].Key)
	req.Equal("c", rows[2].Key)
}
