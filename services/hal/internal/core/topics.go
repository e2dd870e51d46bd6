package core

import "imucode-go/bus"

// Capability topics live at hal/cap/<domain>/<kind>/<name>/<leaf...>.

func (a CapAddr) topic(leaf ...bus.Token) bus.Topic {
	return bus.T("hal", "cap", a.Domain, a.Kind, a.Name).Append(leaf...)
}

func (a CapAddr) InfoTopic() bus.Topic   { return a.topic("info") }
func (a CapAddr) StatusTopic() bus.Topic { return a.topic("status") }
func (a CapAddr) ValueTopic() bus.Topic  { return a.topic("value") }

func (a CapAddr) CtrlTopic(verb string) bus.Topic { return a.topic("control", verb) }

// addrFromCtrl parses hal/cap/<d>/<k>/<n>/control/<verb>.
func addrFromCtrl(t bus.Topic) (CapAddr, string, bool) {
	if t.Len() != 7 || t.At(0) != "hal" || t.At(1) != "cap" || t.At(5) != "control" {
		return CapAddr{}, "", false
	}
	var parts [4]string
	for i, idx := range [4]int{2, 3, 4, 6} {
		s, ok := t.At(idx).(string)
		if !ok || s == "" {
			return CapAddr{}, "", false
		}
		parts[i] = s
	}
	return CapAddr{Domain: parts[0], Kind: parts[1], Name: parts[2]}, parts[3], true
}

var ctrlPattern = bus.T("hal", "cap", "+", "+", "+", "control", "+")

func TopicConfigHAL() bus.Topic { return bus.T("config", "hal") }
func TopicState() bus.Topic     { return bus.T("hal", "state") }

func CapInfo(domain, kind, name string) bus.Topic {
	return CapAddr{domain, kind, name}.InfoTopic()
}
func CapStatus(domain, kind, name string) bus.Topic {
	return CapAddr{domain, kind, name}.StatusTopic()
}
func CapValue(domain, kind, name string) bus.Topic {
	return CapAddr{domain, kind, name}.ValueTopic()
}
func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return CapAddr{domain, kind, name}.CtrlTopic(verb)
}
