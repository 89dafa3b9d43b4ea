package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"persona/pkg/platform/sentinel"
)

// Contract is the subset of *Client the docustore wrapper uses.
type Contract interface {
	QuerySmart(ctx context.Context, contract string, query any, out any) error
	Execute(ctx context.Context, contract string, msg any) (*TxResult, error)
}

// Docustore reads and writes JSON documents held by a docustore contract.
type Docustore struct {
	client  Contract
	address string
}

func NewDocustore(client Contract, contractAddress string) *Docustore {
	return &Docustore{client: client, address: contractAddress}
}

type readQuery struct {
	Read readArgs `json:"read"`
}

type readArgs struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
}

type writeMsg struct {
	Write writeArgs `json:"write"`
}

type writeArgs struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Data       string `json:"data"`
}

// Read returns the stored document body. A missing document, an empty data
// field or a contract "not found" answer wraps sentinel.ErrNotFound.
func (d *Docustore) Read(ctx context.Context, collection, documentID string) ([]byte, error) {
	var resp struct {
		Data *string `json:"data"`
	}
	err := d.client.QuerySmart(ctx, d.address, readQuery{Read: readArgs{Collection: collection, DocumentID: documentID}}, &resp)
	if err != nil {
		var qe *QueryError
		if errors.As(err, &qe) && strings.Contains(strings.ToLower(qe.Message), "not found") {
			return nil, fmt.Errorf("%s/%s: %w", collection, documentID, sentinel.ErrNotFound)
		}
		return nil, err
	}
	if resp.Data == nil || strings.TrimSpace(*resp.Data) == "" {
		return nil, fmt.Errorf("%s/%s: %w", collection, documentID, sentinel.ErrNotFound)
	}
	return []byte(*resp.Data), nil
}

// Write stores data (a JSON document) under collection/documentID.
func (d *Docustore) Write(ctx context.Context, collection, documentID string, data []byte) (*TxResult, error) {
	if !json.Valid(data) {
		return nil, errors.New("document data is not valid JSON")
	}
	return d.client.Execute(ctx, d.address, writeMsg{Write: writeArgs{
		Collection: collection,
		DocumentID: documentID,
		Data:       string(data),
	}})
}
