package flow

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
)

// MessageType discriminates the variants carried over the correlation layer.
type MessageType string

const (
	MessageFetchDocument        MessageType = "fetch_document"
	MessageValidateDocument     MessageType = "validate_document"
	MessageAddRepresentative    MessageType = "add_representative"
	MessageRemoveRepresentative MessageType = "remove_representative"
	MessageEditRepresentative   MessageType = "edit_representative"
	MessageAddCondition         MessageType = "add_condition"
	MessageRemoveCondition      MessageType = "remove_condition"
	MessageEditCondition        MessageType = "edit_condition"
	MessageSetScope             MessageType = "set_scope"
	MessageAddWitness           MessageType = "add_witness"
	MessageAddFreeformWitness   MessageType = "add_freeform_witness"
	MessageRemoveWitness        MessageType = "remove_witness"
	MessageResponse             MessageType = "response"
)

// IsMutation reports whether t changes the document.
func (t MessageType) IsMutation() bool {
	switch t {
	case MessageAddRepresentative, MessageRemoveRepresentative, MessageEditRepresentative,
		MessageAddCondition, MessageRemoveCondition, MessageEditCondition, MessageSetScope,
		MessageAddWitness, MessageAddFreeformWitness, MessageRemoveWitness:
		return true
	}
	return false
}

// Header is the envelope every request carries. ThreadID names the
// conversation thread that receives the resulting activity record.
//
// Caller is the authenticated user a transport acts for and never comes off
// the wire. uuid.Nil marks an in-process caller that skips the ownership check.
type Header struct {
	MessageType MessageType `json:"messageType"`
	RequestID   string      `json:"requestId"`
	DocumentID  uuid.UUID   `json:"documentId"`
	ThreadID    string      `json:"threadId,omitempty"`
	Caller      uuid.UUID   `json:"-"`
}

// Head gives access to the envelope of any request variant.
func (h *Header) Head() *Header { return h }

// Request is the closed set of request variants below.
type Request interface {
	Head() *Header
	Type() MessageType
}

type FetchDocument struct {
	Header
}

type ValidateDocument struct {
	Header
}

type AddRepresentative struct {
	Header
	UserID         uuid.UUID `json:"userId"`
	AcquaintanceID uuid.UUID `json:"acquaintanceId"`
}

type RemoveRepresentative struct {
	Header
	RepresentativeID uuid.UUID `json:"representativeId"`
}

type EditRepresentative struct {
	Header
	RepresentativeID uuid.UUID `json:"representativeId"`
	Address          *string   `json:"address,omitempty"`
	Relationship     *string   `json:"relationship,omitempty"`
}

type AddCondition struct {
	Header
	ConditionType domain.ConditionType `json:"conditionType"`
	Text          string               `json:"text"`
	TargetID      *uuid.UUID           `json:"targetId,omitempty"`
}

type RemoveCondition struct {
	Header
	ConditionID uuid.UUID `json:"conditionId"`
}

type EditCondition struct {
	Header
	ConditionID   uuid.UUID             `json:"conditionId"`
	ConditionType *domain.ConditionType `json:"conditionType,omitempty"`
	Text          *string               `json:"text,omitempty"`
	TargetID      *uuid.UUID            `json:"targetId,omitempty"`
	ClearTarget   bool                  `json:"clearTarget,omitempty"`
}

type SetScope struct {
	Header
	Scope string `json:"scope"`
}

type AddWitness struct {
	Header
	UserID         uuid.UUID `json:"userId"`
	AcquaintanceID uuid.UUID `json:"acquaintanceId"`
}

type AddFreeformWitness struct {
	Header
	FullName         string `json:"fullName"`
	NationalIDNumber string `json:"nationalIdNumber"`
}

type RemoveWitness struct {
	Header
	WitnessID uuid.UUID `json:"witnessId"`
}

// UnknownRequest holds a message whose type this version does not know.
// It is logged and ignored.
type UnknownRequest struct {
	Header
	Raw json.RawMessage `json:"-"`
}

func (*FetchDocument) Type() MessageType        { return MessageFetchDocument }
func (*ValidateDocument) Type() MessageType     { return MessageValidateDocument }
func (*AddRepresentative) Type() MessageType    { return MessageAddRepresentative }
func (*RemoveRepresentative) Type() MessageType { return MessageRemoveRepresentative }
func (*EditRepresentative) Type() MessageType   { return MessageEditRepresentative }
func (*AddCondition) Type() MessageType         { return MessageAddCondition }
func (*RemoveCondition) Type() MessageType      { return MessageRemoveCondition }
func (*EditCondition) Type() MessageType        { return MessageEditCondition }
func (*SetScope) Type() MessageType             { return MessageSetScope }
func (*AddWitness) Type() MessageType           { return MessageAddWitness }
func (*AddFreeformWitness) Type() MessageType   { return MessageAddFreeformWitness }
func (*RemoveWitness) Type() MessageType        { return MessageRemoveWitness }
func (r *UnknownRequest) Type() MessageType     { return r.MessageType }

func newRequest(t MessageType) Request {
	switch t {
	case MessageFetchDocument:
		return &FetchDocument{}
	case MessageValidateDocument:
		return &ValidateDocument{}
	case MessageAddRepresentative:
		return &AddRepresentative{}
	case MessageRemoveRepresentative:
		return &RemoveRepresentative{}
	case MessageEditRepresentative:
		return &EditRepresentative{}
	case MessageAddCondition:
		return &AddCondition{}
	case MessageRemoveCondition:
		return &RemoveCondition{}
	case MessageEditCondition:
		return &EditCondition{}
	case MessageSetScope:
		return &SetScope{}
	case MessageAddWitness:
		return &AddWitness{}
	case MessageAddFreeformWitness:
		return &AddFreeformWitness{}
	case MessageRemoveWitness:
		return &RemoveWitness{}
	}
	return nil
}

// DecodeRequest decodes a JSON envelope into its variant. Unknown message
// types decode to *UnknownRequest without error; malformed input is a
// protocol violation.
func DecodeRequest(data []byte) (Request, error) {
	var head Header
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("flow.DecodeRequest: %w: %w", domain.ErrProtocol, err)
	}
	if head.MessageType == "" {
		return nil, fmt.Errorf("flow.DecodeRequest: missing messageType: %w", domain.ErrProtocol)
	}

	req := newRequest(head.MessageType)
	if req == nil {
		return &UnknownRequest{Header: head, Raw: slices.Clone(data)}, nil
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("flow.DecodeRequest(%s): %w: %w", head.MessageType, domain.ErrProtocol, err)
	}
	return req, nil
}

// EncodeRequest stamps the variant's message type and encodes it.
func EncodeRequest(req Request) ([]byte, error) {
	if _, ok := req.(*UnknownRequest); !ok {
		req.Head().MessageType = req.Type()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("flow.EncodeRequest: %w", err)
	}
	return data, nil
}

// Response answers exactly one request and echoes its requestId.
type Response struct {
	MessageType MessageType            `json:"messageType"`
	RequestID   string                 `json:"requestId"`
	InReplyTo   MessageType            `json:"inReplyTo"`
	DocumentID  uuid.UUID              `json:"documentId"`
	Document    *domain.Document       `json:"document,omitempty"`
	AuditResult *domain.AuditResult    `json:"auditResult,omitempty"`
	Error       *domain.OperationError `json:"error,omitempty"`
}

func newResponse(req Request) *Response {
	head := req.Head()
	return &Response{
		MessageType: MessageResponse,
		RequestID:   head.RequestID,
		InReplyTo:   req.Type(),
		DocumentID:  head.DocumentID,
	}
}

// Err returns the operation failure, if any.
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}
