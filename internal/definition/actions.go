package definition

import (
	"encoding/json"
	"fmt"
)

// Action tags carried in the "action" discriminator field of an update
// request.
const (
	ActionChangeOpenable     = "changeOpenable"
	ActionSetName            = "setName"
	ActionSetDescription     = "setDescription"
	ActionSetDataSchema      = "setDataSchema"
	ActionUpdatePlatformData = "updatePlatformData"
)

// Action is one typed partial-update operation. The set of implementations
// is closed: dispatch is an exhaustive type switch, so an action kind that
// reaches a scope it does not apply to fails with ErrUnsupportedAction
// instead of silently doing nothing.
type Action interface {
	actionTag() string
}

// ChangeOpenable flips whether a definition is exposed externally.
type ChangeOpenable struct {
	Openable bool `json:"openable"`
}

// SetName replaces a definition's name.
type SetName struct {
	Name string `json:"name"`
}

// SetDescription replaces a definition's description.
type SetDescription struct {
	Description string `json:"description"`
}

// SetDataSchema replaces a definition's data schema. The document is
// validated before it is applied.
type SetDataSchema struct {
	DataSchema json.RawMessage `json:"data_schema"`
}

// UpdatePlatformData rewrites a platform definition's schema, name, and
// description in one step. Platform scope only.
type UpdatePlatformData struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	DataSchema  json.RawMessage `json:"data_schema"`
}

func (ChangeOpenable) actionTag() string     { return ActionChangeOpenable }
func (SetName) actionTag() string            { return ActionSetName }
func (SetDescription) actionTag() string     { return ActionSetDescription }
func (SetDataSchema) actionTag() string      { return ActionSetDataSchema }
func (UpdatePlatformData) actionTag() string { return ActionUpdatePlatformData }

// DecodeActions turns raw update-request entries into typed actions. Each
// entry must carry an "action" discriminator naming a known tag.
func DecodeActions(raw []json.RawMessage) ([]Action, error) {
	actions := make([]Action, 0, len(raw))
	for i, entry := range raw {
		var env struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(entry, &env); err != nil {
			return nil, fmt.Errorf("decode action %d: %w", i, err)
		}

		var (
			a   Action
			err error
		)
		switch env.Action {
		case ActionChangeOpenable:
			var v ChangeOpenable
			err = json.Unmarshal(entry, &v)
			a = v
		case ActionSetName:
			var v SetName
			err = json.Unmarshal(entry, &v)
			a = v
		case ActionSetDescription:
			var v SetDescription
			err = json.Unmarshal(entry, &v)
			a = v
		case ActionSetDataSchema:
			var v SetDataSchema
			err = json.Unmarshal(entry, &v)
			a = v
		case ActionUpdatePlatformData:
			var v UpdatePlatformData
			err = json.Unmarshal(entry, &v)
			a = v
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, env.Action)
		}
		if err != nil {
			return nil, fmt.Errorf("decode action %d (%s): %w", i, env.Action, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// ApplyDeviceActions applies each action in order to def. Callers pass a
// detached copy: on any error the caller discards the copy, so a failed
// validation never leaves a half-updated entity visible. The version bump
// happens at persist time, once per update call.
func ApplyDeviceActions(def *DeviceDataDefinition, actions []Action, validate SchemaValidator) error {
	for _, a := range actions {
		switch act := a.(type) {
		case ChangeOpenable:
			def.Openable = act.Openable
		case SetName:
			def.Name = act.Name
		case SetDescription:
			def.Description = act.Description
		case SetDataSchema:
			if err := validate(act.DataSchema); err != nil {
				return err
			}
			def.DataSchema = act.DataSchema
		default:
			return fmt.Errorf("%w: %q on device definition", ErrUnsupportedAction, a.actionTag())
		}
	}
	return nil
}

// ApplyPlatformActions is the platform-scope counterpart of
// ApplyDeviceActions.
func ApplyPlatformActions(def *PlatformDataDefinition, actions []Action, validate SchemaValidator) error {
	for _, a := range actions {
		switch act := a.(type) {
		case ChangeOpenable:
			def.Openable = act.Openable
		case UpdatePlatformData:
			if err := validate(act.DataSchema); err != nil {
				return err
			}
			def.Name = act.Name
			def.Description = act.Description
			def.DataSchema = act.DataSchema
		default:
			return fmt.Errorf("%w: %q on platform definition", ErrUnsupportedAction, a.actionTag())
		}
	}
	return nil
}
