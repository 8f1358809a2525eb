package tool

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/concierge-dev/concierge/pkg/reflectx"
	"github.com/concierge-dev/concierge/pkg/stdx"
	"github.com/concierge-dev/concierge/types"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Definition describes a callable tool: the function itself together with
// the name, description, and parameter naming the model sees.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// ToNameAndSchema resolves the advertised name of the tool and builds the
// JSON schema for its parameters.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	return functionDefinitionJSON(&functionReflector, td)
}

func functionDefinitionJSON(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	val := reflect.ValueOf(f.Function)
	typ := val.Type()

	name := f.Name
	if name == "" && typ.Kind() == reflect.Func {
		if typ.Name() != "" {
			name = typ.String()
		} else if fn := runtime.FuncForPC(val.Pointer()); fn != nil {
			name = fn.Name()
			if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
				name = name[lastDot+1:]
			}
		} else {
			name = typ.String()
		}
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	if typ.Kind() == reflect.Func {
		numIn := typ.NumIn()
		startIdx := 0
		// methods carry their receiver as the first input
		if numIn > 0 && typ.In(0).Kind() == reflect.Struct {
			startIdx = 1
		}

		var required []string
		modelIdx := 0
		for i := startIdx; i < numIn; i++ {
			paramType := typ.In(i)
			// runtime-injected parameters stay out of the schema
			if paramType == contextType || reflectx.IsRefinedType[types.ContextVars](paramType) {
				continue
			}

			paramName := fmt.Sprintf("param%d", modelIdx)
			if f.Parameters != nil {
				if p, ok := f.Parameters[paramName]; ok {
					paramName = p
				}
			}
			modelIdx++

			propSchema := reflector.ReflectFromType(paramType)
			propSchema.Version = ""
			schema.Properties.Set(paramName, propSchema)
			required = append(required, paramName)
		}
		if len(required) > 0 {
			schema.Required = required
		}
	}

	return name, schema
}

// Option configures a Definition during construction.
type Option = opts.Option[Definition]

// Must is New with a panic on error, for package-level tool declarations.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// New builds a Definition from the given function. When no Name option is
// supplied the function's own name is used.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Name sets the advertised name of the tool.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the human-readable description the model sees.
var Description = opts.ForName[Definition, string]("Description")

// Parameters names the function's model-visible parameters in order,
// replacing the generated param0..paramN placeholders.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
