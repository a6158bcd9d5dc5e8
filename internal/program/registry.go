package program

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/xdpwalk/internal/core"
	"firestige.xyz/xdpwalk/internal/core/perf"
	"firestige.xyz/xdpwalk/internal/core/xdp"
)

// PassName is the registry name of the program that passes everything.
const PassName = "pass"

type constructor func(options map[string]any, ring *perf.Ring) (xdp.Program, error)

var registry = map[string]constructor{
	PassName: func(map[string]any, *perf.Ring) (xdp.Program, error) {
		return xdp.ProgramFunc(PassName, func(*xdp.Context) core.Action { return core.ActionPass }), nil
	},
	PortFilterName: func(options map[string]any, ring *perf.Ring) (xdp.Program, error) {
		var cfg PortFilterConfig
		if err := decodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		return NewPortFilter(cfg, ring)
	},
	FlowLogName: func(options map[string]any, ring *perf.Ring) (xdp.Program, error) {
		var cfg FlowLogConfig
		if err := decodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		return NewFlowLog(cfg, ring)
	},
}

// New builds the named program. options are decoded into the program's
// config struct; ring receives its events and may be nil.
func New(name string, options map[string]any, ring *perf.Ring) (xdp.Program, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", core.ErrUnknownProgram, name, Names())
	}
	return ctor(options, ring)
}

// Names lists the registered programs.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("%w: program options: %v", core.ErrConfigInvalid, err)
	}
	return nil
}
