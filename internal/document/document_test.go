package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestor-labs/lexsearch/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		wantErr bool
	}{
		{
			name:  "valid minimal document",
			input: Input{ID: "doc-1"},
		},
		{
			name:  "empty content is allowed",
			input: Input{ID: "doc-2", Name: "empty.txt", Content: ""},
		},
		{
			name:    "missing id",
			input:   Input{Name: "orphan.txt", Content: "some text"},
			wantErr: true,
		},
		{
			name:    "whitespace id",
			input:   Input{ID: "   "},
			wantErr: true,
		},
		{
			name: "entity without canonical name",
			input: Input{
				ID:       "doc-3",
				Entities: []ResolvedEntity{{EntityType: "organization", Confidence: 0.9}},
			},
			wantErr: true,
		},
		{
			name: "entity confidence above one",
			input: Input{
				ID:       "doc-4",
				Entities: []ResolvedEntity{{CanonicalName: "Acme Corp", Confidence: 1.5}},
			},
			wantErr: true,
		},
		{
			name: "entity confidence at bounds",
			input: Input{
				ID: "doc-5",
				Entities: []ResolvedEntity{
					{CanonicalName: "Acme Corp", Confidence: 0},
					{CanonicalName: "Jane Doe", Confidence: 1},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidDocument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{
			name:  "explicit type wins",
			input: Input{ID: "d", Name: "contract_2021.pdf", Metadata: Metadata{DocumentType: TypeBrief}},
			want:  TypeBrief,
		},
		{
			name:  "filename hint",
			input: Input{ID: "d", Name: "Master_Services_Agreement.docx"},
			want:  TypeContract,
		},
		{
			name:  "deposition filename hint",
			input: Input{ID: "d", Name: "smith_depo_vol2.txt"},
			want:  TypeDeposition,
		},
		{
			name:  "content hint",
			input: Input{ID: "d", Name: "scan0041.pdf", Content: "THIS AGREEMENT IS ENTERED INTO as of January 5"},
			want:  TypeContract,
		},
		{
			name:  "correspondence content hint",
			input: Input{ID: "d", Name: "scan0042.pdf", Content: "Dear Mr. Smith, further to our call"},
			want:  TypeCorrespondence,
		},
		{
			name:  "no hints",
			input: Input{ID: "d", Name: "notes.txt", Content: "misc working notes"},
			want:  TypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyType(tt.input))
		})
	}
}

func TestDocumentDate(t *testing.T) {
	created := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	modified := time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC)

	doc := &Document{Metadata: Metadata{CreatedDate: &created, ModifiedDate: &modified}}
	got, ok := doc.Date()
	require.True(t, ok)
	assert.Equal(t, created, got, "created date takes precedence")

	doc = &Document{Metadata: Metadata{ModifiedDate: &modified}}
	got, ok = doc.Date()
	require.True(t, ok)
	assert.Equal(t, modified, got)

	doc = &Document{}
	_, ok = doc.Date()
	assert.False(t, ok)
}

func TestStore(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())

	s.Put(&Document{ID: "b"})
	s.Put(&Document{ID: "a"})
	s.Put(&Document{ID: "c"})
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())

	doc, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", doc.ID)

	// Replacement keeps a single record per ID.
	s.Put(&Document{ID: "b", Name: "second"})
	assert.Equal(t, 3, s.Len())
	doc, _ = s.Get("b")
	assert.Equal(t, "second", doc.Name)

	s.Delete("a")
	assert.Equal(t, 2, s.Len())
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestStoreCloneIsIndependent(t *testing.T) {
	s := NewStore()
	s.Put(&Document{ID: "x"})

	clone := s.Clone()
	clone.Put(&Document{ID: "y"})
	clone.Delete("x")

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("x")
	assert.True(t, ok)
	_, ok = s.Get("y")
	assert.False(t, ok)
}
