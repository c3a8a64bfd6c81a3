package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/discovery"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/transport"
)

func discoveryDefaults() DiscoveryConfig {
	adv := discovery.DefaultAdvertiserConfig()
	return DiscoveryConfig{
		Port: discovery.DefaultPort,
		TTL:  adv.TTL,
	}
}

// ParseOperations parses a comma or pipe separated list of CoAP methods,
// e.g. "GET,PUT". An empty string returns model.OpNone and leaves the
// node default in place.
func ParseOperations(s string) (model.Operation, error) {
	op := model.OpNone
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, f := range fields {
		switch strings.ToUpper(f) {
		case "GET":
			op |= model.OpGet
		case "PUT":
			op |= model.OpPut
		case "POST":
			op |= model.OpPost
		case "DELETE":
			op |= model.OpDelete
		case "ALL":
			op |= model.OpAll
		default:
			return model.OpNone, fmt.Errorf("unknown operation %q", f)
		}
	}
	return op, nil
}

func parseType(s string) (model.ResourceType, error) {
	if s == "" {
		return model.TypeString, nil
	}
	t, ok := model.ParseResourceType(s)
	if !ok {
		return model.TypeString, fmt.Errorf("unknown type %q", s)
	}
	return t, nil
}

// BuildDevice creates the device tree described by c.Objects.
func (c *Config) BuildDevice(mc model.Config) (*model.Device, error) {
	d := model.NewDevice(c.Endpoint, mc)
	for _, oc := range c.Objects {
		o := d.CreateObject(oc.ID)
		if o == nil {
			return nil, fmt.Errorf("%w: object %q", ErrInvalid, oc.ID)
		}
		if err := applyOperations(o, oc.Operations); err != nil {
			return nil, err
		}
		for _, ic := range oc.Instances {
			oi := o.CreateObjectInstanceWithID(ic.ID)
			if oi == nil {
				return nil, fmt.Errorf("%w: instance %s/%d", ErrInvalid, oc.ID, ic.ID)
			}
			if err := applyOperations(oi, ic.Operations); err != nil {
				return nil, err
			}
			for _, rc := range ic.Resources {
				if err := buildResource(oi, rc); err != nil {
					return nil, err
				}
			}
		}
	}
	return d, nil
}

func buildResource(oi *model.ObjectInstance, rc ResourceConfig) error {
	typ, err := parseType(rc.Type)
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrInvalid, oi.Path(), rc.ID, err)
	}

	var r *model.Resource
	if len(rc.Instances) > 0 {
		for _, ic := range rc.Instances {
			var ri *model.ResourceInstance
			if rc.Static {
				ri = oi.CreateStaticResourceInstance(rc.ID, rc.ResourceType, typ, []byte(ic.Value), ic.ID)
			} else if ri = oi.CreateDynamicResourceInstance(rc.ID, rc.ResourceType, typ, rc.Observable, ic.ID); ri != nil && ic.Value != "" {
				ri.SetValue([]byte(ic.Value))
			}
			if ri == nil {
				return fmt.Errorf("%w: resource instance %s/%s/%d", ErrInvalid, oi.Path(), rc.ID, ic.ID)
			}
		}
		r = oi.Resource(rc.ID)
	} else if rc.Static {
		r = oi.CreateStaticResource(rc.ID, rc.ResourceType, typ, []byte(rc.Value), false)
	} else if r = oi.CreateDynamicResource(rc.ID, rc.ResourceType, typ, rc.Observable, false); r != nil && rc.Value != "" {
		r.SetValue([]byte(rc.Value))
	}
	if r == nil {
		return fmt.Errorf("%w: resource %s/%s", ErrInvalid, oi.Path(), rc.ID)
	}
	return applyOperations(r, rc.Operations)
}

func applyOperations(n model.Node, s string) error {
	op, err := ParseOperations(s)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, n.Path(), err)
	}
	if op != model.OpNone {
		n.SetOperation(op)
	}
	return nil
}

// TransportSecurity assembles the transport credentials.
func (c *Config) TransportSecurity() (*transport.Security, error) {
	sc := c.Security
	mode, err := transport.ParseMode(sc.Mode)
	if err != nil {
		return nil, err
	}
	sec := &transport.Security{
		Mode:               mode,
		ServerName:         sc.ServerName,
		InsecureSkipVerify: sc.InsecureSkipVerify,
		ConnectionID:       sc.ConnectionID,
	}

	switch mode {
	case transport.ModePSK:
		sec.PSKIdentity = sc.Identity
		if sec.PSKIdentity == "" {
			sec.PSKIdentity = c.Endpoint
		}
		switch {
		case sc.Key != "":
			if sec.PSK, err = hex.DecodeString(sc.Key); err != nil {
				return nil, fmt.Errorf("%w: psk key: %v", ErrInvalid, err)
			}
		case sc.MasterSecret != "":
			master, err := hex.DecodeString(sc.MasterSecret)
			if err != nil {
				return nil, fmt.Errorf("%w: master secret: %v", ErrInvalid, err)
			}
			if sec.PSK, err = transport.DerivePSK(master, c.Endpoint, transport.DefaultPSKLength); err != nil {
				return nil, err
			}
		}
	case transport.ModeCertificate:
		if sec.Certificate, err = transport.LoadCertificate(sc.CertFile, sc.KeyFile); err != nil {
			return nil, err
		}
		if sc.CAFile != "" {
			data, err := os.ReadFile(sc.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			if sec.RootCAs, err = transport.LoadCertPool(data); err != nil {
				return nil, err
			}
		}
	}

	if err := sec.Validate(); err != nil {
		return nil, err
	}
	return sec, nil
}

// DiscoveryInfo returns the announcement for the device.
func (c *Config) DiscoveryInfo() discovery.DeviceInfo {
	mode, _ := transport.ParseMode(c.Security.Mode)
	port := c.Discovery.Port
	if port == 0 {
		port = discovery.DefaultPort
	}
	return discovery.DeviceInfo{
		Endpoint:     c.Endpoint,
		Port:         uint16(port),
		Version:      discovery.DefaultVersion,
		Binding:      discovery.BindingUDP,
		State:        discovery.StateOffline,
		Security:     mode.String(),
		Manufacturer: c.Discovery.Manufacturer,
		Model:        c.Discovery.Model,
	}
}

// AdvertiserConfig returns the mDNS advertiser settings.
func (c *Config) AdvertiserConfig() discovery.AdvertiserConfig {
	adv := discovery.DefaultAdvertiserConfig()
	adv.Interface = c.Discovery.Interface
	if c.Discovery.TTL > 0 {
		adv.TTL = c.Discovery.TTL
	}
	return adv
}

// UplinkDeviceID returns the uplink token subject, the endpoint by default.
func (c *Config) UplinkDeviceID() string {
	if c.Uplink.DeviceID != "" {
		return c.Uplink.DeviceID
	}
	return c.Endpoint
}

// UplinkInterval returns the publish period.
func (c *Config) UplinkInterval() time.Duration {
	if c.Uplink.Interval > 0 {
		return c.Uplink.Interval
	}
	return DefaultUplinkInterval
}
