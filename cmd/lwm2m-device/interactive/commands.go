package interactive

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

func (sh *Shell) cmdList(ctx context.Context, args []string) {
	var root model.Path
	if len(args) > 0 {
		p, err := model.ParsePath(args[0])
		if err != nil {
			fmt.Fprintf(sh.out, "Invalid path: %v\n", err)
			return
		}
		root = p
	}

	var b strings.Builder
	err := sh.svc.Do(ctx, func(d *model.Device) error {
		if len(root) == 0 {
			for _, o := range d.Objects() {
				writeObject(&b, o)
			}
			return nil
		}
		node, err := d.Lookup(root)
		if err != nil {
			return err
		}
		switch n := node.(type) {
		case *model.Object:
			writeObject(&b, n)
		case *model.ObjectInstance:
			writeInstance(&b, n, "")
		case *model.Resource:
			writeResource(&b, n, "")
		case *model.ResourceInstance:
			fmt.Fprintf(&b, "%s = %s\n", n.Path(), formatValue(n.Value()))
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(sh.out, b.String())
}

func writeObject(b *strings.Builder, o *model.Object) {
	fmt.Fprintf(b, "/%s  [%s]%s\n", o.Name(), o.Operation(), observedMark(o))
	for _, oi := range o.Instances() {
		writeInstance(b, oi, "  ")
	}
}

func writeInstance(b *strings.Builder, oi *model.ObjectInstance, indent string) {
	fmt.Fprintf(b, "%s/%d  [%s]%s\n", indent, oi.InstanceID(), oi.Operation(), observedMark(oi))
	for _, r := range oi.Resources() {
		writeResource(b, r, indent+"  ")
	}
}

func writeResource(b *strings.Builder, r *model.Resource, indent string) {
	if r.SupportsMultipleInstances() {
		fmt.Fprintf(b, "%s/%s %s  [%s]%s\n", indent, r.Name(), r.Type(), r.Operation(), observedMark(r))
		for _, ri := range r.Instances() {
			fmt.Fprintf(b, "%s  /%d = %s\n", indent, ri.InstanceID(), formatValue(ri.Value()))
		}
		return
	}
	fmt.Fprintf(b, "%s/%s %s = %s  [%s]%s\n", indent, r.Name(), r.Type(), formatValue(r.Value()), r.Operation(), observedMark(r))
}

func observedMark(n model.Node) string {
	if n.IsUnderObservation() {
		return " (observed)"
	}
	return ""
}

// formatValue prints text as is and anything else as hex.
func formatValue(v []byte) string {
	if v == nil {
		return "<unset>"
	}
	if utf8.Valid(v) && !strings.ContainsFunc(string(v), func(r rune) bool { return r < 0x20 }) {
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("0x%x", v)
}

func (sh *Shell) cmdRead(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(sh.out, "Usage: read <path>")
		fmt.Fprintln(sh.out, "  Example: read 3303/0/5700")
		return
	}
	path, err := model.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid path: %v\n", err)
		return
	}

	var b strings.Builder
	err = sh.svc.Do(ctx, func(d *model.Device) error {
		node, err := d.Lookup(path)
		if err != nil {
			return err
		}
		switch n := node.(type) {
		case *model.Resource:
			if n.SupportsMultipleInstances() {
				for _, ri := range n.Instances() {
					fmt.Fprintf(&b, "%s = %s\n", ri.Path(), formatValue(ri.Value()))
				}
				return nil
			}
			fmt.Fprintf(&b, "%s = %s\n", n.Path(), formatValue(n.Value()))
		case *model.ResourceInstance:
			fmt.Fprintf(&b, "%s = %s\n", n.Path(), formatValue(n.Value()))
		case *model.ObjectInstance:
			for _, r := range n.Resources() {
				writeResource(&b, r, "")
			}
		default:
			return fmt.Errorf("%s is not readable here, use list", path)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(sh.out, b.String())
}

func (sh *Shell) cmdWrite(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(sh.out, "Usage: write <path> <value>")
		fmt.Fprintln(sh.out, "  Example: write 3303/0/5700 22.5")
		return
	}
	path, err := model.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid path: %v\n", err)
		return
	}
	value := strings.Trim(strings.Join(args[1:], " "), "\"'")
	if err := sh.svc.SetResourceValue(ctx, path, []byte(value)); err != nil {
		fmt.Fprintf(sh.out, "Write failed: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, "OK")
}

func (sh *Shell) cmdObserve(ctx context.Context) {
	var lines []string
	err := sh.svc.Do(ctx, func(d *model.Device) error {
		add := func(n model.Node) {
			if n.IsUnderObservation() {
				lines = append(lines, fmt.Sprintf("  %-20s token=%x seq=%d", n.Path(), n.ObservationToken(), n.ObservationNumber()))
			}
		}
		for _, o := range d.Objects() {
			add(o)
			for _, oi := range o.Instances() {
				add(oi)
				for _, r := range oi.Resources() {
					add(r)
				}
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	if len(lines) == 0 {
		fmt.Fprintln(sh.out, "No active observations")
		return
	}
	fmt.Fprintf(sh.out, "\nObservations (%d):\n", len(lines))
	for _, l := range lines {
		fmt.Fprintln(sh.out, l)
	}
}

func (sh *Shell) cmdAttrs(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(sh.out, "Usage: attrs <path>")
		return
	}
	path, err := model.ParsePath(args[0])
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid path: %v\n", err)
		return
	}

	var out string
	err = sh.svc.Do(ctx, func(d *model.Device) error {
		node, err := d.Lookup(path)
		if err != nil {
			return err
		}
		h := node.ReportHandler()
		if h == nil {
			out = fmt.Sprintf("%s is not observable\n", path)
			return nil
		}
		query := h.Attributes().Query()
		if query == "" {
			query = "<none>"
		}
		out = fmt.Sprintf("%s\n  attributes: %s\n  state:      %s\n", path, query, h.State())
		return nil
	})
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(sh.out, out)
}

func (sh *Shell) cmdStatus() {
	st := sh.svc.Status()
	fmt.Fprintln(sh.out, "\nDevice Status")
	fmt.Fprintln(sh.out, "-------------------------------------------")
	fmt.Fprintf(sh.out, "  Service State:  %s\n", st.State)
	fmt.Fprintf(sh.out, "  Connection:     %s\n", st.Connection)
	if st.ConnectionID != "" {
		fmt.Fprintf(sh.out, "  Connection ID:  %s\n", st.ConnectionID)
	}
	fmt.Fprintf(sh.out, "  Pings Sent:     %d\n", st.KeepAlive.PingsSent)
	if !st.KeepAlive.LastPongTime.IsZero() {
		fmt.Fprintf(sh.out, "  Last Pong:      %s\n", st.KeepAlive.LastPongTime.Format("15:04:05"))
	}
	fmt.Fprintf(sh.out, "  Announced:      %s\n", st.Announced)
	fmt.Fprintln(sh.out)
}
