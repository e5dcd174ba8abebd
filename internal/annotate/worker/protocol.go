// Package worker runs the analysis pipeline off the interaction path.
//
// Workers are stateless goroutines that communicate with the orchestrator
// exclusively through encoded messages on channels; no document state is
// shared. The wire protocol is JSON:
//
//	{"type":"check","id":…,"unit":…,"version":…,"text":…}
//	{"type":"result","id":…,"unit":…,"version":…,"findings":[…]}
//	{"type":"error","id":…,"unit":…,"version":…,"message":…}
package worker

import (
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/engine/document"
)

// Message types on the wire.
const (
	TypeCheck  = "check"
	TypeResult = "result"
	TypeError  = "error"
)

// ErrBadMessage indicates a wire message that cannot be decoded.
var ErrBadMessage = errors.New("worker: malformed message")

// Request asks a worker to analyze one unit of text.
type Request struct {
	// ID correlates the response with the dispatch.
	ID string

	// UnitID is the paragraph the text was snapshotted from.
	UnitID document.ParagraphID

	// DocVersion is the paragraph's version at snapshot time. Responses
	// whose version no longer matches are discarded as stale.
	DocVersion document.Version

	// Text is the immutable unit snapshot.
	Text string
}

// Response carries the findings for one request, or an error message.
type Response struct {
	ID         string
	UnitID     document.ParagraphID
	DocVersion document.Version
	Findings   []finding.Finding
	Err        string
}

// IsError reports whether the response carries an error.
func (r Response) IsError() bool {
	return r.Err != ""
}

// EncodeRequest serializes a check request.
func EncodeRequest(req Request) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	if b, err = sjson.SetBytes(b, "type", TypeCheck); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "id", req.ID); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "unit", string(req.UnitID)); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "version", uint64(req.DocVersion)); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "text", req.Text); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeRequest parses a check request.
func DecodeRequest(msg []byte) (Request, error) {
	if !gjson.ValidBytes(msg) || gjson.GetBytes(msg, "type").String() != TypeCheck {
		return Request{}, ErrBadMessage
	}
	return Request{
		ID:         gjson.GetBytes(msg, "id").String(),
		UnitID:     document.ParagraphID(gjson.GetBytes(msg, "unit").String()),
		DocVersion: document.Version(gjson.GetBytes(msg, "version").Uint()),
		Text:       gjson.GetBytes(msg, "text").String(),
	}, nil
}

// EncodeResponse serializes a result or error response.
func EncodeResponse(resp Response) ([]byte, error) {
	typ := TypeResult
	if resp.IsError() {
		typ = TypeError
	}

	b := []byte(`{}`)
	var err error
	if b, err = sjson.SetBytes(b, "type", typ); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "id", resp.ID); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "unit", string(resp.UnitID)); err != nil {
		return nil, err
	}
	if b, err = sjson.SetBytes(b, "version", uint64(resp.DocVersion)); err != nil {
		return nil, err
	}
	if resp.IsError() {
		if b, err = sjson.SetBytes(b, "message", resp.Err); err != nil {
			return nil, err
		}
		return b, nil
	}
	if b, err = sjson.SetBytes(b, "findings", resp.Findings); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeResponse parses a result or error response.
func DecodeResponse(msg []byte) (Response, error) {
	if !gjson.ValidBytes(msg) {
		return Response{}, ErrBadMessage
	}
	typ := gjson.GetBytes(msg, "type").String()
	if typ != TypeResult && typ != TypeError {
		return Response{}, ErrBadMessage
	}

	resp := Response{
		ID:         gjson.GetBytes(msg, "id").String(),
		UnitID:     document.ParagraphID(gjson.GetBytes(msg, "unit").String()),
		DocVersion: document.Version(gjson.GetBytes(msg, "version").Uint()),
	}
	if typ == TypeError {
		resp.Err = gjson.GetBytes(msg, "message").String()
		return resp, nil
	}

	for _, fj := range gjson.GetBytes(msg, "findings").Array() {
		f := finding.Finding{
			Range: finding.Range{
				Start: int(fj.Get("range.start").Int()),
				End:   int(fj.Get("range.end").Int()),
			},
			Message: fj.Get("message").String(),
			RuleID:  fj.Get("rule").String(),
			Source:  fj.Get("source").String(),
		}
		for _, s := range fj.Get("suggestions").Array() {
			f.Suggestions = append(f.Suggestions, s.String())
		}
		resp.Findings = append(resp.Findings, f)
	}
	return resp, nil
}
