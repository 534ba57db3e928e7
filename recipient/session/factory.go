package session

import (
	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/chains"
	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/contacts"
	"github.com/Cogwheel-Validator/spectra-send/recipient/guard"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
)

// Factory builds sessions over shared, stateless collaborators. Every session
// gets its own channel selector and chain resolver.
type Factory struct {
	Chains     *registry.Registry
	Classifier *address.Classifier
	Allowlist  nameservice.Allowlist
	Names      *nameservice.Resolver
	Matcher    *contacts.Matcher
	Wallets    contacts.WalletList
	Guard      *guard.Guard
	Network    models.Network

	Defaults channels.DefaultChannelSource
	Lister   channels.ChannelLister
	Store    channels.CustomChannelStore

	Options []Option
}

// NewSelector returns a channel selector over the shared channel sources.
func (f *Factory) NewSelector() *channels.Selector {
	var opts []channels.SelectorOption
	if f.Lister != nil {
		opts = append(opts, channels.WithChannelLister(f.Lister))
	}
	return channels.NewSelector(f.Defaults, f.Store, opts...)
}

// New starts a session sending from sourceChain.
func (f *Factory) New(sourceChain string) (*Session, error) {
	return New(Deps{
		Chains:     f.Chains,
		Classifier: f.Classifier,
		Allowlist:  f.Allowlist,
		Names:      f.Names,
		Matcher:    f.Matcher,
		Wallets:    f.Wallets,
		Resolver:   chains.NewResolver(f.Chains, f.Classifier, f.Network),
		Selector:   f.NewSelector(),
		Guard:      f.Guard,
	}, sourceChain, f.Options...)
}
