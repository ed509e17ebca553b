package relay

import (
	"github.com/sagernet/sing-nc/common/poll"
)

type registrar interface {
	Reregister(fd int, token poll.Token, interest poll.Interest) error
}

// recomputeInterest combines an endpoint's fixed interest with writability,
// which is wanted exactly while its destination queue is non-empty.
func recomputeInterest(base poll.Interest, waiting bool) poll.Interest {
	if waiting {
		return base | poll.Writable
	}
	return base &^ poll.Writable
}

type interestEntry struct {
	fd         int
	base       poll.Interest
	registered poll.Interest
}

// interestManager remembers the last interest set registered for each
// endpoint. Notifications are edge-triggered, so an endpoint whose writes
// would block must be re-registered for writability or it is never woken;
// re-registration happens only when the computed set changes.
type interestManager struct {
	poller  registrar
	entries map[poll.Token]*interestEntry
}

func newInterestManager(poller registrar) *interestManager {
	return &interestManager{
		poller:  poller,
		entries: make(map[poll.Token]*interestEntry),
	}
}

// track records an endpoint already registered with interest.
func (m *interestManager) track(token poll.Token, fd int, base poll.Interest, registered poll.Interest) {
	m.entries[token] = &interestEntry{
		fd:         fd,
		base:       base,
		registered: registered,
	}
}

func (m *interestManager) forget(token poll.Token) {
	delete(m.entries, token)
}

func (m *interestManager) registered(token poll.Token) (poll.Interest, bool) {
	entry, loaded := m.entries[token]
	if !loaded {
		return poll.None, false
	}
	return entry.registered, true
}

// update re-registers token when waiting flips its writable interest.
// Untracked endpoints are ignored.
func (m *interestManager) update(token poll.Token, waiting bool) error {
	entry, loaded := m.entries[token]
	if !loaded {
		return nil
	}
	return m.apply(token, entry, recomputeInterest(entry.base, waiting))
}

// setBase changes the fixed part of the interest set, keeping writability.
func (m *interestManager) setBase(token poll.Token, base poll.Interest) error {
	entry, loaded := m.entries[token]
	if !loaded {
		return nil
	}
	entry.base = base
	return m.apply(token, entry, recomputeInterest(base, entry.registered&poll.Writable != 0))
}

func (m *interestManager) apply(token poll.Token, entry *interestEntry, interest poll.Interest) error {
	if interest == entry.registered {
		return nil
	}
	err := m.poller.Reregister(entry.fd, token, interest)
	if err != nil {
		return err
	}
	entry.registered = interest
	return nil
}
