// Package style maps genre tags to descriptive text that is appended to a
// prompt to bias generation towards that genre.
package style

import "fmt"

// Default is the style used when none is given.
const Default = "pop"

type Style struct {
	Tag        string   `json:"tag"`
	Aliases    []string `json:"aliases,omitempty"`
	Descriptor string   `json:"descriptor"`
}

var table = []Style{
	{Tag: "pop", Descriptor: "pop music, catchy melody, upbeat"},
	{Tag: "rock", Descriptor: "rock music, electric guitar, drums, energetic"},
	{Tag: "jazz", Descriptor: "jazz music, smooth, saxophone, piano"},
	{Tag: "classical", Descriptor: "classical music, orchestral, elegant"},
	{Tag: "electronic", Descriptor: "electronic music, synthesizer, electronic beats"},
	{Tag: "ambient", Descriptor: "ambient music, atmospheric, peaceful"},
	{Tag: "hip-hop", Aliases: []string{"hiphop"}, Descriptor: "hip hop music, rap beats, urban"},
	{Tag: "country", Descriptor: "country music, acoustic guitar, folk"},
	{Tag: "reggae", Descriptor: "reggae music, laid back, Caribbean"},
	{Tag: "blues", Descriptor: "blues music, soulful, guitar"},
}

// List returns a copy of the style table.
func List() []Style {
	out := make([]Style, len(table))
	copy(out, table)
	return out
}

// Lookup returns the canned descriptor for a known tag. Tags are matched
// exactly.
func Lookup(key string) (string, bool) {
	for _, s := range table {
		if s.Tag == key {
			return s.Descriptor, true
		}
		for _, a := range s.Aliases {
			if a == key {
				return s.Descriptor, true
			}
		}
	}
	return "", false
}

// Descriptor returns the descriptor for the tag, or the tag itself when it
// isn't in the table.
func Descriptor(tag string) string {
	if d, ok := Lookup(tag); ok {
		return d
	}
	return tag
}

// Enhance appends the style descriptor to the prompt as "{prompt}, {descriptor}".
// Unknown tags, including empty ones, are appended verbatim.
func Enhance(prompt, tag string) string {
	return fmt.Sprintf("%s, %s", prompt, Descriptor(tag))
}
