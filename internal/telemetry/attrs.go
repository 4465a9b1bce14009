package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for lifecycle spans.
const (
	AttrInstanceID = "rapid.instance_id"
	AttrStage      = "rapid.stage"
	AttrEvent      = "rapid.event"
	AttrHookCount  = "rapid.hook_count"
	AttrKind       = "rapid.module.kind"
	AttrModuleName = "rapid.module.name"
	AttrMigration  = "rapid.migration"
	AttrDBClient   = "db.system"
)

func InstanceID(id string) attribute.KeyValue   { return attribute.String(AttrInstanceID, id) }
func Stage(name string) attribute.KeyValue      { return attribute.String(AttrStage, name) }
func Event(name string) attribute.KeyValue      { return attribute.String(AttrEvent, name) }
func HookCount(n int) attribute.KeyValue        { return attribute.Int(AttrHookCount, n) }
func Kind(kind string) attribute.KeyValue       { return attribute.String(AttrKind, kind) }
func ModuleName(name string) attribute.KeyValue { return attribute.String(AttrModuleName, name) }
func Migration(name string) attribute.KeyValue  { return attribute.String(AttrMigration, name) }
func DBClient(client string) attribute.KeyValue { return attribute.String(AttrDBClient, client) }
