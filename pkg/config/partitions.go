package config

import "fmt"

// Partitions are the versioned names of the three live cache partitions.
type Partitions struct {
	// General holds dynamic responses, e.g. maxym-portfolio-v2.0.0.
	General string
	// Images holds image responses, e.g. portfolio-images-v2.0.0.
	Images string
	// Static holds the application shell, e.g. static-v2.0.0.
	Static string
}

// NewPartitions derives all partition names from one version token.
func NewPartitions(app, imagesPrefix, staticPrefix, version string) Partitions {
	return Partitions{
		General: versioned(app, version),
		Images:  versioned(imagesPrefix, version),
		Static:  versioned(staticPrefix, version),
	}
}

func versioned(prefix, version string) string {
	return fmt.Sprintf("%s-v%s", prefix, version)
}

// Whitelist returns the names that survive activation.
func (p Partitions) Whitelist() []string {
	return []string{p.General, p.Images, p.Static}
}

// Contains reports whether name is one of the live partitions.
func (p Partitions) Contains(name string) bool {
	return name == p.General || name == p.Images || name == p.Static
}
