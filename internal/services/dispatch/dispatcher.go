package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ondc-bap/internal/config"
	"ondc-bap/internal/models"
	"ondc-bap/internal/repository/transaction"
	"ondc-bap/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Signer produces the Authorization header for an outbound request body.
type Signer interface {
	AuthHeader(body []byte) (string, error)
}

// Params describes one outbound protocol call. TransactionID may be empty for
// search, in which case a fresh one is generated; BppURI overrides the
// gateway as the target for post-search calls addressed to a specific
// counterparty.
type Params struct {
	Action        string
	TransactionID string
	BppID         string
	BppURI        string
	Message       models.Payload
}

// Dispatcher builds protocol envelopes, signs them and sends them to the
// network. The synchronous response is only an acknowledgement; substantive
// results arrive later on the callback routes. Transport failures propagate
// to the caller, there are no automatic retries.
type Dispatcher struct {
	httpClient *http.Client
	signer     Signer
	store      transaction.Repository
	subscriber config.SubscriberConfig
	gatewayURL string
	requestTTL time.Duration
	logger     *zap.Logger
}

// NewDispatcher creates an outbound dispatcher.
func NewDispatcher(signer Signer, store transaction.Repository, sub config.SubscriberConfig, gw config.GatewayConfig, sig config.SignatureConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		// Fixed timeout guards against indefinitely hanging network calls
		httpClient: &http.Client{Timeout: gw.RequestTimeout},
		signer:     signer,
		store:      store,
		subscriber: sub,
		gatewayURL: gw.URL,
		requestTTL: time.Duration(sig.RequestTTL) * time.Second,
		logger:     logger,
	}
}

// Dispatch sends one signed protocol call and records it in the store.
// Search creates the transaction; every other action requires one to exist
// already.
func (d *Dispatcher) Dispatch(ctx context.Context, params Params) (*models.AckResponse, *models.ProtocolContext, error) {
	if !models.IsValidAction(params.Action) {
		return nil, nil, errors.NewDomainError(65001, "invalid request", "unknown action: "+params.Action)
	}

	protocolCtx := d.buildContext(params)

	if params.Action == "search" {
		d.store.CreateTransaction(protocolCtx.TransactionID, protocolCtx.MessageID, params.Message)
	} else {
		if _, err := d.store.Get(protocolCtx.TransactionID); err != nil {
			return nil, nil, err
		}
	}

	request := models.ProtocolRequest{Context: *protocolCtx, Message: params.Message}
	// These exact bytes are digested, signed and sent; re-marshaling would
	// break byte-for-byte verification on the receiving side
	body, err := json.Marshal(request)
	if err != nil {
		return nil, nil, errors.WrapDomainError(err, 65020, "dispatch failed", "failed to marshal request")
	}

	authHeader, err := d.signer.AuthHeader(body)
	if err != nil {
		return nil, nil, err
	}

	targetURL := d.targetURL(params)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, errors.WrapDomainError(err, 65020, "dispatch failed", "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", authHeader)

	d.logger.Info("dispatching protocol call",
		zap.String("action", params.Action),
		zap.String("transaction_id", protocolCtx.TransactionID),
		zap.String("message_id", protocolCtx.MessageID),
		zap.String("url", targetURL),
	)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, errors.WrapDomainError(err, 65011, "network request failed", "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, errors.NewDomainError(65011, "network request failed", fmt.Sprintf("unexpected status: %d", resp.StatusCode))
	}

	var ack models.AckResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, nil, errors.WrapDomainError(err, 65011, "network request failed", "malformed acknowledgement")
	}

	return &ack, protocolCtx, nil
}

func (d *Dispatcher) buildContext(params Params) *models.ProtocolContext {
	transactionID := params.TransactionID
	if transactionID == "" {
		transactionID = uuid.New().String()
	}

	return &models.ProtocolContext{
		Domain:        d.subscriber.Domain,
		Country:       d.subscriber.Country,
		City:          d.subscriber.City,
		Action:        params.Action,
		CoreVersion:   d.subscriber.CoreVersion,
		BapID:         d.subscriber.SubscriberID,
		BapURI:        d.subscriber.SubscriberURI,
		BppID:         params.BppID,
		BppURI:        params.BppURI,
		TransactionID: transactionID,
		MessageID:     uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		TTL:           models.FormatTTL(d.requestTTL),
	}
}

func (d *Dispatcher) targetURL(params Params) string {
	base := d.gatewayURL
	if params.BppURI != "" {
		base = params.BppURI
	}
	return base + "/" + params.Action
}
