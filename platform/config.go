package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a target capability description from a yaml file.
//
// Example:
//
//	name: amd64
//	pointer_size: 8
//	max_align: 16
//	fetch_op_sizes: [1, 2, 4, 8]
//	compare_and_swap_sizes: [1, 2, 4, 8, 16]
func LoadConfig(path string) (*Spec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform config: %w", err)
	}
	return ParseConfig(content)
}

func ParseConfig(content []byte) (*Spec, error) {
	spec := &Spec{}
	err := yaml.Unmarshal(content, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse platform config: %w", err)
	}

	if spec.TargetName == "" {
		return nil, fmt.Errorf("platform config missing name")
	}
	if spec.PtrSize != 4 && spec.PtrSize != 8 {
		return nil, fmt.Errorf(
			"unsupported pointer size (%d)",
			spec.PtrSize)
	}
	if spec.MaxAlign == 0 {
		spec.MaxAlign = spec.PtrSize
	}
	return spec, nil
}
