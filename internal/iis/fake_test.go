package iis

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/remiblancher/wincert/internal/remote"
	"github.com/remiblancher/wincert/internal/remote/remotetest"
)

// fakeIIS models the binding table of one web server.
type fakeIIS struct {
	mu       sync.Mutex
	bindings []Binding
	noModule bool

	// failStep makes the named step fail for the named site.
	failStep map[string]string
}

func newFakeIIS(bindings ...Binding) *fakeIIS {
	return &fakeIIS{bindings: bindings, failStep: map[string]string{}}
}

func (f *fakeIIS) session(host string) *remotetest.Session {
	return remotetest.New(host).
		Handle(CommandDiscover, f.discover).
		Handle(CommandRemove, f.step(StepRemove, f.remove)).
		Handle(CommandCreate, f.step(StepCreate, f.create)).
		Handle(CommandAttach, f.step(StepAttach, f.attach))
}

func (f *fakeIIS) snapshot() []Binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Binding(nil), f.bindings...)
}

func (f *fakeIIS) discover(remote.Command) (*remote.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noModule {
		return &remote.Result{Output: []string{moduleMissingMarker}}, nil
	}
	res := &remote.Result{}
	for _, b := range f.bindings {
		line, _ := json.Marshal(bindingRow{
			Site:        b.Site,
			Protocol:    b.Protocol,
			Information: b.Information,
			Thumbprint:  b.Thumbprint,
			SslFlags:    int(b.SNI),
		})
		res.Output = append(res.Output, string(line))
	}
	return res, nil
}

func (f *fakeIIS) step(name string, fn func(remote.Command) error) remotetest.Handler {
	return func(cmd remote.Command) (*remote.Result, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failStep[cmd.Param("siteName")] == name {
			return &remote.Result{Errors: []string{name + " failed"}}, nil
		}
		if err := fn(cmd); err != nil {
			return &remote.Result{Errors: []string{err.Error()}}, nil
		}
		return &remote.Result{}, nil
	}
}

func matches(b Binding, cmd remote.Command) bool {
	return b.Site == cmd.Param("siteName") &&
		b.IPAddress == cmd.Param("ipAddress") &&
		b.Port == cmd.Param("port") &&
		b.HostHeader == cmd.Param("hostHeader") &&
		b.Protocol == cmd.Param("protocol")
}

func (f *fakeIIS) remove(cmd remote.Command) error {
	kept := f.bindings[:0]
	for _, b := range f.bindings {
		if !matches(b, cmd) {
			kept = append(kept, b)
		}
	}
	f.bindings = kept
	return nil
}

func (f *fakeIIS) create(cmd remote.Command) error {
	for _, b := range f.bindings {
		if matches(b, cmd) {
			return errors.New("cannot add duplicate collection entry")
		}
	}
	flags, err := strconv.Atoi(cmd.Param("sslFlags"))
	if err != nil {
		return err
	}
	info := cmd.Param("ipAddress") + ":" + cmd.Param("port") + ":" + cmd.Param("hostHeader")
	f.bindings = append(f.bindings, NewBinding(cmd.Param("siteName"), cmd.Param("protocol"), info, "", SNIMode(flags)))
	return nil
}

func (f *fakeIIS) attach(cmd remote.Command) error {
	for i, b := range f.bindings {
		if matches(b, cmd) {
			f.bindings[i].Thumbprint = cmd.Param("thumbprint")
			return nil
		}
	}
	return errors.New("binding not found")
}
