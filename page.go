package gosortable

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

var _encoder = base64.RawURLEncoding

// PageTokenElement is a triple (c v o), where:
//
//   - "c" - the column.
//   - "v" - the JSON encoded value of the column in the last listed record.
//   - "o" - the operator selecting records that follow it.
type PageTokenElement struct {
	Column   string          `json:"c"`
	Value    json.RawMessage `json:"v"`
	Operator Operator        `json:"o"`
}

// PageToken marks the position after which the next page of a listing
// starts: the rank and the key of the last listed record. An empty token
// means the head of the listing.
//
// Tokens are keyset positions, not offsets, so a page never repeats or skips
// records that were not moved in between.
type PageToken struct {
	elements []PageTokenElement
}

// DecodePageToken parses a base64 encoded token produced by PageToken.String.
// An empty string decodes to a nil token.
func DecodePageToken(b64String string) (*PageToken, error) {
	if len(b64String) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(b64String)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 encoded page token: %w", err)
	}

	var elems []PageTokenElement
	if err = json.Unmarshal(jsonData, &elems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json encoded page token: %w", err)
	}

	return &PageToken{
		elements: elems,
	}, nil
}

// newPageToken builds the token positioned at values, one per ordering.
func newPageToken(orderings Orderings, values ...any) (*PageToken, error) {
	if len(values) != len(orderings) {
		return nil, fmt.Errorf("page token needs %d values, got %d", len(orderings), len(values))
	}

	ret := &PageToken{elements: make([]PageTokenElement, 0, len(orderings))}
	for i, orderBy := range orderings {
		value, err := json.Marshal(values[i])
		if err != nil {
			return nil, fmt.Errorf("cannot encode page token value of '%s': %w", orderBy.Column, err)
		}

		ret.elements = append(ret.elements, PageTokenElement{
			Column:   orderBy.Column,
			Value:    value,
			Operator: orderBy.Direction.ForOperator(),
		})
	}

	return ret, nil
}

// String - implements fmt.Stringer.
func (t *PageToken) String() string {
	if t.IsEmpty() {
		return ""
	}

	jTok, err := json.Marshal(t.elements)
	if err != nil {
		panic(fmt.Errorf("cannot marshal page token value: %w", err))
	}

	var buf bytes.Buffer
	if err = json.Compact(&buf, jTok); err != nil {
		panic(fmt.Errorf("cannot compact page token value: %w", err))
	}

	return _encoder.EncodeToString(buf.Bytes())
}

func (t *PageToken) IsEmpty() bool {
	return t == nil || len(t.elements) == 0
}

// GetElements returns the elements of the token.
func (t *PageToken) GetElements() []PageTokenElement {
	if t == nil {
		return nil
	}

	return t.elements
}

// validate checks the token against the orderings of the listing it is
// applied to. Tokens issued for another column set or direction are rejected.
func (t *PageToken) validate(orderings Orderings) error {
	if t.IsEmpty() {
		return nil
	}

	if len(t.elements) != len(orderings) {
		return fmt.Errorf("page token column number mismatch")
	}

	for i := range t.elements {
		elem := t.elements[i]
		orderBy := orderings[i]

		if elem.Column != orderBy.Column {
			return fmt.Errorf("unexpected page token column '%s'", elem.Column)
		}

		if !elem.Operator.Valid() {
			return fmt.Errorf("invalid page token operator '%s'", elem.Operator)
		} else if elem.Operator != orderBy.Direction.ForOperator() {
			return fmt.Errorf("unexpected page token operator '%s'", elem.Operator)
		}
	}

	return nil
}

// pagePosition decodes the rank and the key a validated rank listing token
// points at.
func pagePosition[K any](t *PageToken) (int64, K, error) {
	var (
		rank int64
		key  K
	)

	elements := t.GetElements()
	if len(elements) != 2 {
		return rank, key, fmt.Errorf("page token must hold a rank and a key")
	}

	if err := json.Unmarshal(elements[0].Value, &rank); err != nil {
		return rank, key, fmt.Errorf("invalid page token rank: %w", err)
	}

	if err := json.Unmarshal(elements[1].Value, &key); err != nil {
		return rank, key, fmt.Errorf("invalid page token key: %w", err)
	}

	return rank, key, nil
}

// Page is a page of a ranked listing.
type Page[T any] struct {
	// Items result elements, head first.
	Items []T
	// AppliedLimit effective limit used for the query.
	AppliedLimit int
	// NextPageToken token for the next page. Empty on the last page.
	NextPageToken string
}

var _ fmt.Stringer = (*PageToken)(nil)
