package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/chains"
	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/contacts"
	"github.com/Cogwheel-Validator/spectra-send/recipient/guard"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry/registrytest"
	"github.com/Cogwheel-Validator/spectra-send/recipient/session"
	"github.com/zeebo/assert"
)

const (
	osmoAddr    = "osmo1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5helwsw"
	cosmosAddr  = "cosmos14w46h2at4w46h2at4w46h2at4w46h2atuw643a"
	initAddr    = "init1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc535vdd7"
	junoAddr    = "juno1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5fs09pq"
	evmAddr     = "0x0102030405060708090a0b0c0d0e0f1011121314"
	nameAddress = "osmo14w46h2at4w46h2at4w46h2at4w46h2at54f980"
)

type mapDefaults map[string]string

func (m mapDefaults) DefaultChannel(ctx context.Context, source, destination string) (string, bool, error) {
	id, ok := m[source+"/"+destination]
	return id, ok, nil
}

// gatedProvider answers "leap.arch" once the gate is closed.
type gatedProvider struct {
	gate chan struct{}
	once sync.Once
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{gate: make(chan struct{})}
}

func (g *gatedProvider) release() {
	g.once.Do(func() { close(g.gate) })
}

func (g *gatedProvider) ID() string { return "icns" }

func (g *gatedProvider) Resolve(ctx context.Context, name string, network models.Network) (nameservice.Result, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if name != "leap.arch" {
		return nil, nil
	}
	return nameservice.Single{Address: nameAddress}, nil
}

type fixture struct {
	session  *session.Session
	store    *channels.MemoryStore
	provider *gatedProvider
}

type fixtureConfig struct {
	source   string
	network  models.Network
	defaults mapDefaults
	noNames  bool
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	if cfg.network == "" {
		cfg.network = models.NetworkMainnet
	}

	reg := registrytest.New(t)
	allow := nameservice.NewAllowlist(reg.Prefixes(), nameservice.DefaultSuffixes...)
	classifier := address.NewClassifier(reg, address.WithNameCheck(allow.Eligible))

	book := &contacts.AddressBook{
		Active: "main",
		WalletItems: []contacts.Wallet{
			{ID: "main", Name: "Main wallet", Type: models.WalletSeed, Addresses: map[string]string{"osmosis": osmoAddr}},
		},
		ContactList: []contacts.Contact{
			{Name: "Validator", Address: junoAddr, ChainKey: "juno"},
		},
	}

	store := channels.NewMemoryStore()
	provider := newGatedProvider()
	t.Cleanup(provider.release)

	names := nameservice.NewResolver(time.Second, provider)
	if cfg.noNames {
		names = nil
	}

	s, err := session.New(session.Deps{
		Chains:     reg,
		Classifier: classifier,
		Allowlist:  allow,
		Names:      names,
		Matcher:    contacts.NewMatcher(reg, book, book),
		Wallets:    book,
		Resolver:   chains.NewResolver(reg, classifier, cfg.network),
		Selector:   channels.NewSelector(cfg.defaults, store),
		Guard:      guard.New(reg, classifier),
	}, cfg.source, session.WithDebounce(time.Millisecond))
	assert.NoError(t, err)
	t.Cleanup(s.Close)

	return &fixture{session: s, store: store, provider: provider}
}

func settle(t *testing.T, s *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Settle(ctx))
}

func TestNewRejectsUnknownSource(t *testing.T) {
	reg := registrytest.New(t)
	classifier := address.NewClassifier(reg)
	_, err := session.New(session.Deps{
		Chains:     reg,
		Classifier: classifier,
		Resolver:   chains.NewResolver(reg, classifier, models.NetworkMainnet),
		Selector:   channels.NewSelector(nil, nil),
		Guard:      guard.New(reg, classifier),
	}, "nowhere")
	assert.Error(t, err)
}

func TestExampleIBCAddress(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{"osmosis/cosmos": "channel-0"}})

	f.session.SetInput(cosmosAddr)
	out := f.session.Output()
	assert.NotNil(t, out.SelectedAddress)
	assert.Equal(t, out.SelectedAddress.ChainName, "cosmos")
	assert.Equal(t, out.SelectedAddress.SelectionType, models.SelectionNotSaved)
	assert.True(t, out.IsIBCTransfer)
	assert.Equal(t, out.AddressError, "")

	settle(t, f.session)
	out = f.session.Output()
	assert.Equal(t, out.ChannelState, channels.StateHasVerifiedDefault.String())
	assert.DeepEqual(t, out.ChannelOptions, []models.ChannelOption{
		{Title: "channel-0", SubTitle: models.SubTitleDefault, Value: "channel-0"},
	})
	assert.False(t, out.IsLoading)
	assert.True(t, out.CanSubmit)
}

func TestExampleNameService(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis"})

	f.session.SetInput("leap.arch")
	out := f.session.Output()
	assert.True(t, out.ShowNameServiceResults)
	assert.Equal(t, out.AddressError, "")
	assert.True(t, out.IsLoading)
	assert.Nil(t, out.SelectedAddress)
	assert.False(t, out.CanSubmit)

	f.provider.release()
	settle(t, f.session)

	out = f.session.Output()
	assert.False(t, out.IsLoading)
	assert.Equal(t, out.NameServiceOutcome, nameservice.OutcomeHasResults.String())
	assert.DeepEqual(t, out.NameServiceCandidates, []nameservice.Candidate{
		{ProviderID: "icns", ChainKey: "osmosis", Address: nameAddress},
	})
	assert.NotNil(t, out.SelectedAddress)
	assert.Equal(t, out.SelectedAddress.Address, nameAddress)
	assert.Equal(t, out.SelectedAddress.Name, "leap.arch")
	assert.Equal(t, out.SelectedAddress.SelectionType, models.SelectionNameService)
	assert.True(t, out.SelectedAddress.Information.Autofill)
	assert.False(t, out.IsIBCTransfer)
	assert.True(t, out.CanSubmit)
}

func TestNameOutsideAllowlist(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis"})

	f.session.SetInput("leap.xyz")
	out := f.session.Output()
	assert.False(t, out.ShowNameServiceResults)
	assert.False(t, out.IsLoading)
	assert.Equal(t, out.AddressError, models.ErrMsgInvalidAddress)
}

func TestStaleNameResultsAreDiscarded(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{"osmosis/cosmos": "channel-0"}})

	f.session.SetInput("leap.arch")
	// let the debounce fire so the lookup is in flight
	time.Sleep(20 * time.Millisecond)
	f.session.SetInput(cosmosAddr)
	f.provider.release()
	settle(t, f.session)

	out := f.session.Output()
	assert.NotNil(t, out.SelectedAddress)
	assert.Equal(t, out.SelectedAddress.Address, cosmosAddr)
	assert.Equal(t, len(out.NameServiceCandidates), 0)
	assert.False(t, out.ShowNameServiceResults)
}

func TestExampleOwnAddress(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis"})

	f.session.SetInput(osmoAddr)
	settle(t, f.session)

	out := f.session.Output()
	assert.Equal(t, out.AddressError, "")
	assert.Equal(t, out.AddressWarning, models.WarnMsgSelfTransfer)
	assert.Equal(t, out.SelectedAddress.SelectionType, models.SelectionCurrentWallet)
	assert.Equal(t, out.SelectedAddress.Name, "Main wallet")
	assert.False(t, out.IsIBCTransfer)
	assert.True(t, out.CanSubmit)
}

func TestExampleCustomChannel(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{}})
	assert.NoError(t, f.store.Add(context.Background(), "osmosis", "cosmos", "channel-42"))

	f.session.SetInput(cosmosAddr)
	settle(t, f.session)

	out := f.session.Output()
	assert.DeepEqual(t, out.ChannelOptions, []models.ChannelOption{
		{Title: "channel-42", SubTitle: models.SubTitleCustom, Value: "channel-42"},
	})
	assert.Equal(t, out.AddressError, models.ErrMsgNoVerifiedRoutes)
	assert.True(t, out.RecoverableError)
	assert.False(t, out.CanSubmit)

	assert.NoError(t, f.session.SelectChannel("channel-42"))
	out = f.session.Output()
	assert.Equal(t, out.CustomChannelID, "channel-42")
	assert.Equal(t, out.AddressError, "")
	assert.Equal(t, out.AddressWarning, models.WarnMsgUnverifiedChannel)
	assert.True(t, out.RequiresAck)
	assert.False(t, out.CanSubmit)

	f.session.AcknowledgeUnverified()
	out = f.session.Output()
	assert.False(t, out.RequiresAck)
	assert.True(t, out.CanSubmit)
}

func TestAddCustomChannelThroughSession(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{}})

	f.session.SetInput(cosmosAddr)
	settle(t, f.session)

	res, err := f.session.AddCustomChannel(context.Background(), "7")
	assert.NoError(t, err)
	assert.True(t, res.Added)

	out := f.session.Output()
	assert.Equal(t, out.CustomChannelID, "channel-7")
	assert.True(t, out.RequiresAck)

	stored, err := f.store.List(context.Background(), "osmosis", "cosmos")
	assert.NoError(t, err)
	assert.DeepEqual(t, stored, []string{"channel-7"})
}

func TestExampleCW20(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{"osmosis/cosmos": "channel-0"}})

	f.session.SetToken(&models.Token{Denom: "cw20:osmo1contract", CW20: true})
	f.session.SetInput(cosmosAddr)
	settle(t, f.session)

	out := f.session.Output()
	assert.Equal(t, out.AddressError, models.ErrMsgCW20NotSupported)
	assert.False(t, out.CanSubmit)

	f.session.SetToken(nil)
	assert.Equal(t, f.session.Output().AddressError, "")
}

func TestLeavingEVMOnlyChainClearsHexRecipient(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "ethereum"})

	f.session.SetInput(evmAddr)
	out := f.session.Output()
	assert.NotNil(t, out.SelectedAddress)
	assert.Equal(t, out.SelectedAddress.ChainName, "ethereum")

	assert.NoError(t, f.session.SetSourceChain("osmosis"))
	out = f.session.Output()
	assert.Equal(t, out.Input, "")
	assert.Nil(t, out.SelectedAddress)
	assert.Equal(t, out.AddressError, "")
	assert.Equal(t, out.SourceChain, "osmosis")
}

func TestSourceChangeReResolves(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{
		"osmosis/cosmos": "channel-0",
	}})

	f.session.SetInput(cosmosAddr)
	settle(t, f.session)
	assert.True(t, f.session.Output().IsIBCTransfer)

	assert.NoError(t, f.session.SetSourceChain("cosmos"))
	settle(t, f.session)
	out := f.session.Output()
	assert.Equal(t, out.Input, cosmosAddr)
	assert.Equal(t, out.SelectedAddress.ChainName, "cosmos")
	assert.False(t, out.IsIBCTransfer)
	assert.Equal(t, out.ChannelState, channels.StateNoChannelNeeded.String())

	assert.Error(t, f.session.SetSourceChain("nowhere"))
}

func TestSharedPrefixNeedsDisambiguation(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis"})

	f.session.SetInput(initAddr)
	out := f.session.Output()
	assert.True(t, out.NeedsDisambiguation)
	assert.DeepEqual(t, out.ChainCandidates, []string{"echelon", "initia"})
	assert.Nil(t, out.SelectedAddress)
	assert.Equal(t, out.AddressError, "")
	assert.False(t, out.CanSubmit)

	assert.Error(t, f.session.ChooseDestinationChain("juno"))

	assert.NoError(t, f.session.ChooseDestinationChain("initia"))
	settle(t, f.session)
	out = f.session.Output()
	assert.False(t, out.NeedsDisambiguation)
	assert.Equal(t, out.SelectedAddress.ChainName, "initia")
	assert.True(t, out.IsIBCTransfer)
}

func TestChainDisabledOnNetwork(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", network: models.NetworkTestnet})

	f.session.SetInput(junoAddr)
	out := f.session.Output()
	assert.Nil(t, out.SelectedAddress)
	assert.Equal(t, out.AddressError, models.ErrMsgUnsupportedChain)
	assert.False(t, out.CanSubmit)
}

func TestSelectContactCandidate(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{"osmosis/juno": "channel-42"}})

	f.session.SetInput("valid")
	out := f.session.Output()
	assert.Equal(t, len(out.ContactCandidates), 1)

	assert.NoError(t, f.session.SelectCandidate(out.ContactCandidates[0].Selected))
	settle(t, f.session)
	out = f.session.Output()
	assert.Equal(t, out.SelectedAddress.Address, junoAddr)
	assert.Equal(t, out.SelectedAddress.SelectionType, models.SelectionSaved)
	assert.True(t, out.IsIBCTransfer)
	assert.Equal(t, out.AddressError, "")
	assert.True(t, out.CanSubmit)

	assert.Error(t, f.session.SelectCandidate(models.SelectedAddress{}))
}

func TestClear(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", defaults: mapDefaults{"osmosis/cosmos": "channel-0"}})

	f.session.SetInput(cosmosAddr)
	settle(t, f.session)
	f.session.Clear()

	out := f.session.Output()
	assert.Equal(t, out.Input, "")
	assert.Nil(t, out.SelectedAddress)
	assert.False(t, out.IsIBCTransfer)
	assert.Equal(t, out.AddressError, "")
	assert.False(t, out.CanSubmit)
}

func TestLedgerWalletNeedsApp(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis"})

	f.session.SetWallet(models.WalletLedger, []int{60})
	f.session.SetInput(osmoAddr)
	out := f.session.Output()
	assert.NotEqual(t, out.AddressError, "")
	assert.False(t, out.CanSubmit)

	f.session.SetWallet(models.WalletLedger, nil)
	assert.Equal(t, f.session.Output().AddressError, "")
}

func TestPickedRecipientAcrossTransitions(t *testing.T) {
	defaults := mapDefaults{
		"osmosis/juno":   "channel-42",
		"cosmos/juno":    "channel-207",
		"cosmos/osmosis": "channel-141",
	}

	pickContact := func(t *testing.T, f *fixture) {
		f.session.SetInput("valid")
		out := f.session.Output()
		assert.Equal(t, len(out.ContactCandidates), 1)
		assert.NoError(t, f.session.SelectCandidate(out.ContactCandidates[0].Selected))
	}
	pickName := func(t *testing.T, f *fixture) {
		f.session.SetInput("leap.arch")
		f.provider.release()
		settle(t, f.session)
		out := f.session.Output()
		assert.NotNil(t, out.SelectedAddress)
		assert.Equal(t, out.SelectedAddress.SelectionType, models.SelectionNameService)
	}

	tests := []struct {
		name        string
		pick        func(t *testing.T, f *fixture)
		change      func(t *testing.T, s *session.Session)
		wantAddress string
		wantIBC     bool
	}{
		{
			name: "contact kept when switching between cosmos chains",
			pick: pickContact,
			change: func(t *testing.T, s *session.Session) {
				assert.NoError(t, s.SetSourceChain("cosmos"))
			},
			wantAddress: junoAddr,
			wantIBC:     true,
		},
		{
			name: "contact kept when switching to its own chain",
			pick: pickContact,
			change: func(t *testing.T, s *session.Session) {
				assert.NoError(t, s.SetSourceChain("juno"))
			},
			wantAddress: junoAddr,
		},
		{
			name: "contact cleared when switching to an EVM-only chain",
			pick: pickContact,
			change: func(t *testing.T, s *session.Session) {
				assert.NoError(t, s.SetSourceChain("ethereum"))
			},
		},
		{
			name: "contact cleared when switching to solana",
			pick: pickContact,
			change: func(t *testing.T, s *session.Session) {
				assert.NoError(t, s.SetSourceChain("solana"))
			},
		},
		{
			name: "contact kept when the token changes",
			pick: pickContact,
			change: func(t *testing.T, s *session.Session) {
				s.SetToken(&models.Token{Denom: "uosmo"})
			},
			wantAddress: junoAddr,
			wantIBC:     true,
		},
		{
			name: "name service result kept when switching between cosmos chains",
			pick: pickName,
			change: func(t *testing.T, s *session.Session) {
				assert.NoError(t, s.SetSourceChain("cosmos"))
			},
			wantAddress: nameAddress,
			wantIBC:     true,
		},
		{
			name: "name service result kept when the token changes",
			pick: pickName,
			change: func(t *testing.T, s *session.Session) {
				s.SetToken(&models.Token{Denom: "uatom"})
			},
			wantAddress: nameAddress,
		},
		{
			name: "name service result cleared when switching to an EVM-only chain",
			pick: pickName,
			change: func(t *testing.T, s *session.Session) {
				assert.NoError(t, s.SetSourceChain("ethereum"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureConfig{source: "osmosis", defaults: defaults})
			tt.pick(t, f)
			settle(t, f.session)

			tt.change(t, f.session)
			settle(t, f.session)

			out := f.session.Output()
			if tt.wantAddress == "" {
				assert.Nil(t, out.SelectedAddress)
				assert.False(t, out.CanSubmit)
				return
			}
			assert.NotNil(t, out.SelectedAddress)
			assert.Equal(t, out.SelectedAddress.Address, tt.wantAddress)
			assert.Equal(t, out.IsIBCTransfer, tt.wantIBC)
			assert.Equal(t, out.AddressError, "")
			assert.True(t, out.CanSubmit)
		})
	}
}

func TestContactSearchIsNotAnError(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis"})

	f.session.SetInput("vali")
	out := f.session.Output()
	assert.Equal(t, len(out.ContactCandidates), 1)
	assert.Equal(t, out.AddressError, "")
	assert.Nil(t, out.SelectedAddress)
	assert.False(t, out.CanSubmit)

	f.session.SetInput("nobody")
	out = f.session.Output()
	assert.Equal(t, len(out.ContactCandidates), 0)
	assert.Equal(t, out.AddressError, models.ErrMsgInvalidAddress)
}

func TestNameWithoutResolver(t *testing.T) {
	f := newFixture(t, fixtureConfig{source: "osmosis", noNames: true})

	f.session.SetInput("leap.arch")
	settle(t, f.session)

	out := f.session.Output()
	assert.True(t, out.ShowNameServiceResults)
	assert.False(t, out.IsLoading)
	assert.Equal(t, out.NameServiceOutcome, nameservice.OutcomeNoResults.String())
	assert.Nil(t, out.SelectedAddress)
}
