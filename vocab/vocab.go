// Package vocab provides the bidirectional mapping between caption tokens and integer ids.
package vocab

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Reserved markers. Their ids are resolved once, when a Vocab is built.
const (
	StartToken = "<start>"
	EndToken   = "<end>"
)

// UnknownTokenError is returned when a token is not in the vocabulary.
type UnknownTokenError string

func (err UnknownTokenError) Error() string {
	return fmt.Sprintf("Unknown token %q", string(err))
}

// IndexOutOfRangeError is returned when an id does not map to a token.
type IndexOutOfRangeError struct {
	Index, Size int
}

func (err IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("Index %d out of range [0, %d)", err.Index, err.Size)
}

// Vocab is an immutable token <-> id table.
type Vocab struct {
	token2index map[string]int
	index2token []string

	start, end int
	unk        int // -1 if unknown tokens are an error
}

// Option configures a Vocab at construction.
type Option func(v *Vocab) error

// WithUnknown maps tokens that are absent from the vocabulary to the id of tok.
func WithUnknown(tok string) Option {
	return func(v *Vocab) error {
		id, ok := v.token2index[tok]
		if !ok {
			return errors.WithStack(UnknownTokenError(tok))
		}
		v.unk = id
		return nil
	}
}

// New builds a Vocab from an id -> token table. The ids must be exactly [0, len(index2token)),
// the tokens must be unique, and both reserved markers must be present.
func New(index2token map[int]string, opts ...Option) (*Vocab, error) {
	size := len(index2token)
	v := &Vocab{
		token2index: make(map[string]int, size),
		index2token: make([]string, size),
		unk:         -1,
	}
	for i, tok := range index2token {
		if i < 0 || i >= size {
			return nil, errors.Wrapf(IndexOutOfRangeError{i, size}, "vocabulary ids are not dense")
		}
		if j, ok := v.token2index[tok]; ok {
			return nil, errors.Errorf("token %q is mapped by both %d and %d", tok, j, i)
		}
		v.token2index[tok] = i
		v.index2token[i] = tok
	}

	var ok bool
	if v.start, ok = v.token2index[StartToken]; !ok {
		return nil, errors.Wrap(UnknownTokenError(StartToken), "vocabulary has no start marker")
	}
	if v.end, ok = v.token2index[EndToken]; !ok {
		return nil, errors.Wrap(UnknownTokenError(EndToken), "vocabulary has no end marker")
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// FromTokens builds a Vocab where the id of each token is its position in toks.
func FromTokens(toks []string, opts ...Option) (*Vocab, error) {
	index2token := make(map[int]string, len(toks))
	for i, tok := range toks {
		index2token[i] = tok
	}
	return New(index2token, opts...)
}

// Size is the number of tokens.
func (v *Vocab) Size() int { return len(v.index2token) }

// Start is the id of the start-of-sequence marker.
func (v *Vocab) Start() int { return v.start }

// End is the id of the end-of-sequence marker.
func (v *Vocab) End() int { return v.end }

// Encode returns the id of tok.
func (v *Vocab) Encode(tok string) (int, error) {
	if id, ok := v.token2index[tok]; ok {
		return id, nil
	}
	if v.unk >= 0 {
		return v.unk, nil
	}
	return -1, UnknownTokenError(tok)
}

// Decode returns the token for id.
func (v *Vocab) Decode(id int) (string, error) {
	if id < 0 || id >= len(v.index2token) {
		return "", IndexOutOfRangeError{id, len(v.index2token)}
	}
	return v.index2token[id], nil
}

// EncodeSentence splits s on whitespace and wraps the encoded tokens with the start and end markers.
func (v *Vocab) EncodeSentence(s string) ([]int, error) {
	fields := strings.Fields(s)
	retVal := make([]int, 0, len(fields)+2)
	retVal = append(retVal, v.start)
	for _, f := range fields {
		id, err := v.Encode(f)
		if err != nil {
			return nil, err
		}
		retVal = append(retVal, id)
	}
	return append(retVal, v.end), nil
}

// DecodeSentence renders ids as a space separated string. A leading start marker and a
// trailing end marker are dropped, markers anywhere else are rendered as tokens.
func (v *Vocab) DecodeSentence(ids []int) (string, error) {
	if len(ids) > 0 && ids[0] == v.start {
		ids = ids[1:]
	}
	if len(ids) > 0 && ids[len(ids)-1] == v.end {
		ids = ids[:len(ids)-1]
	}
	toks := make([]string, 0, len(ids))
	for _, id := range ids {
		tok, err := v.Decode(id)
		if err != nil {
			return "", err
		}
		toks = append(toks, tok)
	}
	return strings.Join(toks, " "), nil
}

// Tokens returns a copy of the id -> token table.
func (v *Vocab) Tokens() []string {
	retVal := make([]string, len(v.index2token))
	copy(retVal, v.index2token)
	return retVal
}
