package domain

import (
	"fmt"
	"strings"
)

const keySeparator = "/"

// Classification is the tipo/anio/grado triple that files are filed under.
type Classification struct {
	Tipo  string `json:"tipo"`
	Anio  string `json:"anio"`
	Grado string `json:"grado"`
}

// Fields returns the classification as form field name → value.
func (c Classification) Fields() map[string]string {
	return map[string]string{
		"tipo":  c.Tipo,
		"anio":  c.Anio,
		"grado": c.Grado,
	}
}

// ClassificationFields lists the required request fields in display order.
var ClassificationFields = []string{"tipo", "anio", "grado"}

// DestinationKey is the folder-like location derived from a Classification.
type DestinationKey struct {
	tipo, anio, grado string
}

// DeriveKey validates a classification and maps it to its destination key.
func DeriveKey(c Classification) (DestinationKey, error) {
	tipo := strings.TrimSpace(c.Tipo)
	anio := strings.TrimSpace(c.Anio)
	grado := strings.TrimSpace(c.Grado)

	var problems []string
	for _, field := range []struct{ name, value string }{
		{"tipo", tipo},
		{"anio", anio},
		{"grado", grado},
	} {
		switch {
		case field.value == "":
			problems = append(problems, field.name+" is required")
		case strings.Contains(field.value, keySeparator):
			problems = append(problems, field.name+" must not contain "+keySeparator)
		}
	}
	if len(problems) > 0 {
		return DestinationKey{}, fmt.Errorf("%w: %s", ErrInvalidClassification, strings.Join(problems, ", "))
	}

	return DestinationKey{tipo: tipo, anio: anio, grado: grado}, nil
}

// String returns "tipo/anio/grado", the folder the host stores assets under.
func (k DestinationKey) String() string {
	return k.tipo + keySeparator + k.anio + keySeparator + k.grado
}

// Prefix is the listing prefix for the key. The trailing separator keeps
// "5to" from matching assets filed under "5tox".
func (k DestinationKey) Prefix() string {
	return k.String() + keySeparator
}

// Underscores inside a field are escaped so the joined tag stays unique per key.
var tagEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

// Tag is the label attached to every asset stored under the key.
func (k DestinationKey) Tag() string {
	return tagEscaper.Replace(k.tipo) + "_" + tagEscaper.Replace(k.anio) + "_" + tagEscaper.Replace(k.grado)
}

// IsZero reports whether the key was never derived.
func (k DestinationKey) IsZero() bool {
	return k.tipo == "" && k.anio == "" && k.grado == ""
}
