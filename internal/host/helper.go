package host

import "phoned/pkg/event"

// pluginHelper is the plugin.Helper the host hands to one plugin instance.
type pluginHelper struct {
	host    *Host
	name    string
	options map[string]string
}

func (p *pluginHelper) Config(key string) string {
	return p.options[key]
}

func (p *pluginHelper) Error(err error) error {
	if err != nil {
		p.host.reportError(p.name, err)
	}
	return err
}

func (p *pluginHelper) Trigger(ev *event.Event) {
	p.host.trigger(p.name, ev)
}
