// Package core holds the contract domain: the entities, the store contract
// and the ContractRepository that applies the document rules on top of it.
package core

import (
	"bytes"
	"time"
)

// Status is the lifecycle status of a contract document.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusSigned   Status = "signed"
	StatusExpired  Status = "expired"
	StatusDeclined Status = "declined"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSigned, StatusExpired, StatusDeclined:
		return true
	}
	return false
}

// Role identifies the signing party.
type Role string

const (
	// RoleDesigner is the contract owner and counter-signing party.
	RoleDesigner Role = "designer"
	// RoleClient is the reviewing counterparty.
	RoleClient Role = "client"
)

// Roles lists every signing role in a stable order.
var Roles = []Role{RoleDesigner, RoleClient}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDesigner || r == RoleClient
}

// Stage is a contract's position in the edit/sign/send workflow.
type Stage string

const (
	StageEdit Stage = "edit"
	StageSign Stage = "sign"
	StageSend Stage = "send"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s == StageEdit || s == StageSign || s == StageSend
}

// Metadata holds the activity fields of a contract. SignedBy and SignedAt
// are derived from the latest signature and cleared when the contract goes
// back to draft.
type Metadata struct {
	IPAddress    string    `json:"ipAddress,omitempty" yaml:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	LastActivity time.Time `json:"lastActivity" yaml:"lastActivity"`
	ViewCount    int       `json:"viewCount" yaml:"viewCount"`
	SignedBy     string    `json:"signedBy,omitempty" yaml:"signedBy,omitempty"`
	SignedAt     time.Time `json:"signedAt,omitzero" yaml:"signedAt,omitempty"`
}

// Revision is an archived copy of the content as it was before a signature
// bumped the version.
type Revision struct {
	Content   []byte    `json:"content" yaml:"content"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
	Version   int       `json:"version" yaml:"version"`
}

// Contract is the document stored under contracts/{id}.
type Contract struct {
	ID               string     `json:"id" yaml:"id"`
	OwnerID          string     `json:"ownerId" yaml:"ownerId"`
	Content          []byte     `json:"content" yaml:"content"`
	Status           Status     `json:"status" yaml:"status"`
	Version          int        `json:"version" yaml:"version"`
	PreviousVersions []Revision `json:"previousVersions,omitempty" yaml:"previousVersions,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt" yaml:"updatedAt"`
	Metadata         Metadata   `json:"metadata" yaml:"metadata"`
}

// Clone returns a deep copy of c.
func (c Contract) Clone() Contract {
	out := c
	out.Content = bytes.Clone(c.Content)
	if c.PreviousVersions != nil {
		out.PreviousVersions = make([]Revision, len(c.PreviousVersions))
		for i, rev := range c.PreviousVersions {
			rev.Content = bytes.Clone(rev.Content)
			out.PreviousVersions[i] = rev
		}
	}
	return out
}

// HasContent reports whether the content holds anything besides whitespace.
func HasContent(content []byte) bool {
	return len(bytes.TrimSpace(content)) > 0
}

// Signature is stored under contracts/{id}/signatures/{role}.
type Signature struct {
	ContractID     string    `json:"contractId"`
	Role           Role      `json:"role"`
	SignerUserID   string    `json:"signerUserId"`
	Name           string    `json:"name"`
	SignatureImage []byte    `json:"signatureImage,omitempty"`
	SignedAt       time.Time `json:"signedAt"`
}

// Signatures is the per-role view of a contract's signatures. A nil field
// means the role has not signed.
type Signatures struct {
	Designer *Signature `json:"designer"`
	Client   *Signature `json:"client"`
}

// For returns the signature held by role.
func (s Signatures) For(role Role) *Signature {
	switch role {
	case RoleDesigner:
		return s.Designer
	case RoleClient:
		return s.Client
	}
	return nil
}

// With returns s with role's signature replaced by sig.
func (s Signatures) With(role Role, sig *Signature) Signatures {
	switch role {
	case RoleDesigner:
		s.Designer = sig
	case RoleClient:
		s.Client = sig
	}
	return s
}

// HasDesigner reports whether the designer signature exists.
func (s Signatures) HasDesigner() bool { return s.Designer != nil }

// Complete reports whether every role has signed.
func (s Signatures) Complete() bool { return s.Designer != nil && s.Client != nil }

// StageRecord is the persisted stage of a contract. ExplicitIntent marks a
// record written by a deliberate user action rather than a derived default.
type StageRecord struct {
	ContractID     string    `json:"contractId"`
	Stage          Stage     `json:"stage"`
	LastUpdated    time.Time `json:"lastUpdated"`
	ExplicitIntent bool      `json:"explicitIntent,omitempty"`
}

// StatusRecord is the locally cached status of a contract.
type StatusRecord struct {
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Source tells where a value came from.
type Source string

const (
	SourceLocal   Source = "local"
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
)

// CacheEntry is a value held by the local cache together with its write
// time and origin.
type CacheEntry[T any] struct {
	Value       T         `json:"value"`
	LastUpdated time.Time `json:"lastUpdated"`
	Source      Source    `json:"source"`
}
