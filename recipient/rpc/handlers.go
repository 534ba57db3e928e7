package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/chains"
	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/session"
)

const maxBodyBytes = 64 << 10

type sendAPI struct {
	factory       *session.Factory
	settleTimeout time.Duration
}

// ResolveRequest runs one send-form session to completion.
type ResolveRequest struct {
	Input           string            `json:"input"`
	SourceChain     string            `json:"sourceChain"`
	Token           *models.Token     `json:"token,omitempty"`
	WalletType      models.WalletType `json:"walletType,omitempty"`
	LedgerCoinTypes []int             `json:"ledgerCoinTypes,omitempty"`
	// DestinationChain settles a shared-prefix address
	DestinationChain string `json:"destinationChain,omitempty"`
	// ChannelID selects a channel option, AcknowledgeUnverified consents to
	// it when it is not the verified default
	ChannelID             string `json:"channelId,omitempty"`
	AcknowledgeUnverified bool   `json:"acknowledgeUnverified,omitempty"`
}

// ChainEntry is one chain usable on the configured network.
type ChainEntry struct {
	Key       string           `json:"key"`
	ChainName string           `json:"chainName"`
	ChainID   string           `json:"chainId"`
	Ecosystem models.Ecosystem `json:"ecosystem"`
	Prefix    string           `json:"addressPrefix,omitempty"`
}

// ChannelsResponse lists the channel options of a pair.
type ChannelsResponse struct {
	Source           string                 `json:"source"`
	Destination      string                 `json:"destination"`
	IsIBCTransfer    bool                   `json:"isIBCTransfer"`
	State            string                 `json:"state"`
	DiscoveryOutcome string                 `json:"discoveryOutcome,omitempty"`
	DefaultChannelID string                 `json:"defaultChannelId,omitempty"`
	Options          []models.ChannelOption `json:"options"`
}

// AddChannelRequest stores a custom channel for a pair.
type AddChannelRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ChannelID   string `json:"channelId"`
}

// AddChannelResponse is the outcome of adding a custom channel.
type AddChannelResponse struct {
	ChannelID string                 `json:"channelId,omitempty"`
	Added     bool                   `json:"added"`
	Message   string                 `json:"message,omitempty"`
	Options   []models.ChannelOption `json:"options"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		Logger.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (a *sendAPI) listChains(w http.ResponseWriter, r *http.Request) {
	reg := a.factory.Chains
	entries := make([]ChainEntry, 0, len(reg.Keys()))
	for _, key := range reg.Keys() {
		chain, _ := reg.Chain(key)
		if !chain.AvailableOn(a.factory.Network) {
			continue
		}
		entries = append(entries, ChainEntry{
			Key:       chain.Key,
			ChainName: chain.ChainName,
			ChainID:   chain.ChainIDFor(a.factory.Network),
			Ecosystem: chain.EcosystemOrDefault(),
			Prefix:    chain.AddressPrefix,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *sendAPI) resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SourceChain == "" {
		writeError(w, http.StatusBadRequest, "sourceChain is required")
		return
	}

	s, err := a.factory.New(req.SourceChain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(r.Context(), a.settleTimeout)
	defer cancel()

	s.SetToken(req.Token)
	s.SetWallet(req.WalletType, req.LedgerCoinTypes)
	s.SetInput(req.Input)
	if err := s.Settle(ctx); err != nil {
		Logger.Debug().Err(err).Str("input", req.Input).Msg("resolve did not settle")
	}

	if req.DestinationChain != "" {
		if err := s.ChooseDestinationChain(req.DestinationChain); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.Settle(ctx); err != nil {
			Logger.Debug().Err(err).Str("input", req.Input).Msg("resolve did not settle")
		}
	}

	if req.ChannelID != "" {
		id, err := channels.NormalizeChannelID(req.ChannelID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.SelectChannel(id); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.AcknowledgeUnverified {
			s.AcknowledgeUnverified()
		}
	}

	writeJSON(w, http.StatusOK, s.Output())
}

// discoverPair points a fresh selector at the pair and runs discovery.
func (a *sendAPI) discoverPair(ctx context.Context, source, destination string) (*channels.Selector, error) {
	reg := a.factory.Chains
	for _, key := range []string{source, destination} {
		if _, ok := reg.Chain(key); !ok {
			return nil, errors.New("unknown chain: " + key)
		}
	}
	selector := a.factory.NewSelector()
	ibc := chains.IsIBCTransfer(reg, source, destination)
	gen := selector.SetRoute(source, destination, ibc)
	if ibc {
		ctx, cancel := context.WithTimeout(ctx, a.settleTimeout)
		defer cancel()
		selector.Discover(ctx, gen)
	}
	return selector, nil
}

func (a *sendAPI) listChannels(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	destination := strings.TrimSpace(r.URL.Query().Get("destination"))
	if source == "" || destination == "" {
		writeError(w, http.StatusBadRequest, "source and destination are required")
		return
	}

	selector, err := a.discoverPair(r.Context(), source, destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := selector.Snapshot()
	writeJSON(w, http.StatusOK, ChannelsResponse{
		Source:           source,
		Destination:      destination,
		IsIBCTransfer:    snap.State != channels.StateNoChannelNeeded,
		State:            snap.State.String(),
		DiscoveryOutcome: snap.DiscoveryOutcome,
		DefaultChannelID: snap.DefaultChannelID,
		Options:          snap.Options,
	})
}

func (a *sendAPI) addChannel(w http.ResponseWriter, r *http.Request) {
	var req AddChannelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, "source and destination are required")
		return
	}

	selector, err := a.discoverPair(r.Context(), req.Source, req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if selector.State() == channels.StateNoChannelNeeded {
		writeError(w, http.StatusBadRequest, channels.ErrNoRoute.Error())
		return
	}

	res, err := selector.AddCustomChannel(r.Context(), req.ChannelID)
	switch {
	case errors.Is(err, channels.ErrInvalidChannelID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		Logger.Error().Err(err).Str("source", req.Source).Str("destination", req.Destination).Msg("failed to add custom channel")
		writeError(w, http.StatusInternalServerError, "failed to store channel")
		return
	}

	status := http.StatusOK
	if res.Added {
		status = http.StatusCreated
	}
	writeJSON(w, status, AddChannelResponse{
		ChannelID: res.ChannelID,
		Added:     res.Added,
		Message:   res.Message,
		Options:   selector.Options(),
	})
}
