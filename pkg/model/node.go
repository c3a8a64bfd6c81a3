package model

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mash-protocol/lwm2m-go/pkg/report"
	"github.com/mash-protocol/lwm2m-go/pkg/timer"
)

// UnnamedID is the NameID of a node whose name is not a number.
const UnnamedID = -1

// Tree errors.
var (
	ErrNotFound           = errors.New("node not found")
	ErrInvalidPath        = errors.New("invalid path")
	ErrUnnamedNode        = errors.New("node name is not numeric")
	ErrNotMultiInstance   = errors.New("resource is not multi-instance")
	ErrNotExecutable      = errors.New("resource has no execute function")
	ErrOperationForbidden = errors.New("operation not allowed")
)

// Kind identifies the concrete node type.
type Kind uint8

const (
	KindObject Kind = iota + 1
	KindObjectInstance
	KindResource
	KindResourceInstance
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "OBJECT"
	case KindObjectInstance:
		return "OBJECT_INSTANCE"
	case KindResource:
		return "RESOURCE"
	case KindResourceInstance:
		return "RESOURCE_INSTANCE"
	default:
		return "UNKNOWN"
	}
}

// Operation is the set of allowed request methods.
type Operation uint8

const (
	OpGet Operation = 1 << iota
	OpPut
	OpPost
	OpDelete

	// OpNone allows nothing.
	OpNone Operation = 0

	// OpGetPut is the default for writable nodes.
	OpGetPut = OpGet | OpPut

	// OpAll allows every method.
	OpAll = OpGet | OpPut | OpPost | OpDelete
)

// Allows returns true if every bit of op is set.
func (o Operation) Allows(op Operation) bool {
	return o&op == op
}

// String returns the operation set as a string.
func (o Operation) String() string {
	var parts []string
	if o&OpGet != 0 {
		parts = append(parts, "GET")
	}
	if o&OpPut != 0 {
		parts = append(parts, "PUT")
	}
	if o&OpPost != 0 {
		parts = append(parts, "POST")
	}
	if o&OpDelete != 0 {
		parts = append(parts, "DELETE")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// ObservationLevel records at which tree level an observation is registered.
type ObservationLevel uint8

const (
	LevelNone     ObservationLevel = 0
	LevelResource ObservationLevel = 1
	LevelInstance ObservationLevel = 2
	LevelObject   ObservationLevel = 4
)

// Has returns true if any bit of l is set.
func (o ObservationLevel) Has(l ObservationLevel) bool {
	return o&l != 0
}

// String returns the level set as a string.
func (o ObservationLevel) String() string {
	var parts []string
	if o&LevelObject != 0 {
		parts = append(parts, "O")
	}
	if o&LevelInstance != 0 {
		parts = append(parts, "OI")
	}
	if o&LevelResource != 0 {
		parts = append(parts, "R")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// ContentFormat is a CoAP content format number.
type ContentFormat uint16

const (
	ContentFormatText       ContentFormat = 0
	ContentFormatLinkFormat ContentFormat = 40
	ContentFormatOpaque     ContentFormat = 42
	ContentFormatSenMLCBOR  ContentFormat = 112
	ContentFormatTLV        ContentFormat = 11542
	ContentFormatJSON       ContentFormat = 11543
)

// String returns the format name.
func (c ContentFormat) String() string {
	switch c {
	case ContentFormatText:
		return "text/plain"
	case ContentFormatLinkFormat:
		return "application/link-format"
	case ContentFormatOpaque:
		return "application/octet-stream"
	case ContentFormatSenMLCBOR:
		return "application/senml+cbor"
	case ContentFormatTLV:
		return "application/vnd.oma.lwm2m+tlv"
	case ContentFormatJSON:
		return "application/vnd.oma.lwm2m+json"
	default:
		return "format(" + strconv.Itoa(int(c)) + ")"
	}
}

// Path addresses a node by its segments, e.g. ["3303", "0", "5700"].
type Path []string

// ParsePath splits a URI path. Leading and trailing slashes are ignored.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(s, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, ErrInvalidPath
		}
	}
	if len(segs) > 4 {
		return nil, ErrInvalidPath
	}
	return Path(segs), nil
}

// String joins the segments with slashes.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Child returns a new path with seg appended.
func (p Path) Child(seg string) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, seg)
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p)
}

// ObservationHandler is implemented by the owner of the tree (the device
// service). It sends notifications and learns about value and structure changes.
type ObservationHandler interface {
	// ObservationToBeSent is called when node's report handler decided a
	// notification is due.
	ObservationToBeSent(node Node)

	// ValueUpdated is called after a server write changed node's value.
	ValueUpdated(node Node)

	// ResourceToBeDeleted is called before a node is removed.
	ResourceToBeDeleted(path Path)
}

// Linker drops registrations for removed paths.
type Linker interface {
	RemovePath(path Path)
}

// Node is the behavior shared by every level of the tree.
type Node interface {
	Kind() Kind
	Name() string
	NameID() int
	InstanceID() uint16
	Path() Path

	Operation() Operation
	SetOperation(op Operation)

	ContentType() ContentFormat
	SetContentType(cf ContentFormat)

	IsObservable() bool
	SetObservable(observable bool)
	ObservationLevel() ObservationLevel
	AddObservationLevel(level ObservationLevel)
	RemoveObservationLevel(level ObservationLevel)

	// ReportHandler is nil while the node is not observable.
	ReportHandler() *report.Handler

	// SetUnderObservation starts or stops an observation. A nil handler keeps
	// the tree-wide observation handler.
	SetUnderObservation(observed bool, handler ObservationHandler)
	IsUnderObservation() bool
	ObservationHandler() ObservationHandler

	ObservationToken() []byte
	SetObservationToken(token []byte)
	ObservationNumber() uint16
	NextObservationNumber() uint16
}

// Config configures a tree.
type Config struct {
	// Timers drives report handler periods. Defaults to a Manager that runs
	// expiries on the timer goroutine.
	Timers timer.Service

	// StepPolicy is passed to every report handler.
	StepPolicy report.StepPolicy

	// Logger for debug output (optional)
	Logger *slog.Logger
}

// env is shared by every node of one tree.
type env struct {
	timers     timer.Service
	stepPolicy report.StepPolicy
	logger     *slog.Logger
	linker     Linker
	handler    ObservationHandler
}

func newEnv(config Config) *env {
	timers := config.Timers
	if timers == nil {
		timers = timer.NewManager(nil)
	}
	return &env{
		timers:     timers,
		stepPolicy: config.StepPolicy,
		logger:     config.Logger,
	}
}

func (e *env) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *env) removePath(path Path) {
	if e.handler != nil {
		e.handler.ResourceToBeDeleted(path)
	}
	if e.linker != nil {
		e.linker.RemovePath(path)
	}
}

// base holds the state common to all node kinds.
type base struct {
	env  *env
	self Node

	kind       Kind
	name       string
	nameID     int
	instanceID uint16

	operation   Operation
	contentType ContentFormat

	observable       bool
	level            ObservationLevel
	underObservation bool
	obsHandler       ObservationHandler
	reportHandler    *report.Handler
	token            []byte
	obsNumber        uint16
}

func (b *base) init(e *env, self Node, kind Kind, name string, instanceID uint16) {
	b.env = e
	b.self = self
	b.kind = kind
	b.name = name
	b.nameID = nameID(name)
	b.instanceID = instanceID
	b.contentType = ContentFormatTLV
}

func nameID(name string) int {
	id, err := strconv.Atoi(name)
	if err != nil || id < 0 || id > 0xFFFF {
		return UnnamedID
	}
	return id
}

func (b *base) Kind() Kind                 { return b.kind }
func (b *base) Name() string               { return b.name }
func (b *base) NameID() int                { return b.nameID }
func (b *base) InstanceID() uint16         { return b.instanceID }
func (b *base) Operation() Operation       { return b.operation }
func (b *base) SetOperation(op Operation)  { b.operation = op }
func (b *base) ContentType() ContentFormat { return b.contentType }

func (b *base) SetContentType(cf ContentFormat) { b.contentType = cf }

func (b *base) IsObservable() bool                 { return b.observable }
func (b *base) ObservationLevel() ObservationLevel { return b.level }
func (b *base) ReportHandler() *report.Handler     { return b.reportHandler }
func (b *base) IsUnderObservation() bool           { return b.underObservation }
func (b *base) ObservationToken() []byte           { return b.token }
func (b *base) ObservationNumber() uint16          { return b.obsNumber }

// SetObservable creates or closes the report handler.
func (b *base) SetObservable(observable bool) {
	if observable == b.observable {
		return
	}
	b.observable = observable
	if observable {
		b.reportHandler = report.NewHandler(b, b.env.timers, report.Config{
			StepPolicy: b.env.stepPolicy,
			Target:     b.reportTarget(),
			Logger:     b.env.logger,
		})
		return
	}
	b.underObservation = false
	if b.reportHandler != nil {
		b.reportHandler.Close()
		b.reportHandler = nil
	}
}

func (b *base) reportTarget() report.Target {
	switch b.kind {
	case KindObject:
		return report.TargetObject
	case KindObjectInstance:
		return report.TargetObjectInstance
	default:
		return report.TargetResource
	}
}

func (b *base) AddObservationLevel(level ObservationLevel) {
	b.level |= level
}

func (b *base) RemoveObservationLevel(level ObservationLevel) {
	b.level &^= level
}

func (b *base) SetUnderObservation(observed bool, handler ObservationHandler) {
	b.underObservation = observed
	if observed {
		if handler != nil {
			b.obsHandler = handler
		}
	} else {
		b.token = nil
	}
	if b.reportHandler != nil {
		b.reportHandler.SetUnderObservation(observed)
	}
}

func (b *base) ObservationHandler() ObservationHandler {
	if b.obsHandler != nil {
		return b.obsHandler
	}
	return b.env.handler
}

func (b *base) SetObservationToken(token []byte) {
	b.token = append([]byte(nil), token...)
}

func (b *base) NextObservationNumber() uint16 {
	b.obsNumber++
	return b.obsNumber
}

// ObservationToBeSent implements report.Observer.
func (b *base) ObservationToBeSent() {
	if h := b.ObservationHandler(); h != nil {
		h.ObservationToBeSent(b.self)
	}
}

// closeHandler stops the report handler timers.
func (b *base) closeHandler() {
	if b.reportHandler != nil {
		b.reportHandler.Close()
	}
	b.underObservation = false
}

var (
	_ Node            = (*Object)(nil)
	_ Node            = (*ObjectInstance)(nil)
	_ Node            = (*Resource)(nil)
	_ Node            = (*ResourceInstance)(nil)
	_ report.Observer = (*base)(nil)
)
