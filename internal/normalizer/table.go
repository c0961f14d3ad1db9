package normalizer

import (
	"errors"
	"fmt"
	"os"

	"commodity-price-portal/internal/models"

	"gopkg.in/yaml.v3"
)

// Entry lists the keywords that identify one canonical id
type Entry struct {
	ID       string   `yaml:"id"`
	Synonyms []string `yaml:"synonyms"`
}

// Table is the ordered synonym configuration for both kinds.
// Order matters: a label is claimed by the first entry with a matching keyword.
type Table struct {
	Commodities []Entry `yaml:"commodities"`
	Regions     []Entry `yaml:"regions"`
}

// ErrShadowedSynonym means a keyword can never match because an earlier keyword always wins
var ErrShadowedSynonym = errors.New("synonym is shadowed by an earlier entry")

// Validate checks ids against the canonical enums and rejects shadowed keywords
func (t Table) Validate() error {
	if err := validateEntries(t.Commodities, KindCommodity); err != nil {
		return err
	}
	return validateEntries(t.Regions, KindRegion)
}

func validateEntries(entries []Entry, kind Kind) error {
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		switch kind {
		case KindCommodity:
			if !models.Commodity(e.ID).IsValid() {
				return fmt.Errorf("unknown %s id %q", kind, e.ID)
			}
		case KindRegion:
			if !models.Region(e.ID).IsValid() {
				return fmt.Errorf("unknown %s id %q", kind, e.ID)
			}
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate %s id %q", kind, e.ID)
		}
		seen[e.ID] = true

		for _, syn := range e.Synonyms {
			s := fold(syn)
			if s == "" {
				return fmt.Errorf("%s %s: empty synonym", kind, e.ID)
			}
			for _, earlier := range entries[:i] {
				for _, prev := range earlier.Synonyms {
					if containsWord(s, fold(prev)) {
						return fmt.Errorf("%s %s: %q contains %q of %s: %w",
							kind, e.ID, syn, prev, earlier.ID, ErrShadowedSynonym)
					}
				}
			}
		}
	}
	return nil
}

// LoadTable reads a YAML mapping file. A section the file leaves empty keeps the built-in entries.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var file Table
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Table{}, fmt.Errorf("failed to parse mapping file: %w", err)
	}

	table := DefaultTable()
	if len(file.Commodities) > 0 {
		table.Commodities = file.Commodities
	}
	if len(file.Regions) > 0 {
		table.Regions = file.Regions
	}
	return table, nil
}

// FromFile builds a Normalizer from path, or from the built-in table when path is empty
func FromFile(path string) (*Normalizer, error) {
	if path == "" {
		return Default(), nil
	}
	table, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	return New(table)
}

// DefaultTable returns a fresh copy of the built-in mapping
func DefaultTable() Table {
	return Table{
		Commodities: []Entry{
			{ID: "RICE", Synonyms: []string{"beras", "rice"}},
			{ID: "SUGAR", Synonyms: []string{"gula pasir", "gula", "sugar"}},
			{ID: "COOKING_OIL", Synonyms: []string{"minyak goreng", "migor", "cooking oil"}},
			{ID: "SHALLOT", Synonyms: []string{"bawang merah", "shallot"}},
			{ID: "GARLIC", Synonyms: []string{"bawang putih", "garlic"}},
			{ID: "RED_CHILI", Synonyms: []string{"cabai merah", "cabe merah", "red chili", "red chilli"}},
			{ID: "BIRD_EYE_CHILI", Synonyms: []string{"cabai rawit", "cabe rawit", "rawit", "bird eye chili", "bird's eye chili"}},
			{ID: "BEEF", Synonyms: []string{"daging sapi", "beef"}},
			// eggs before chicken: "telur ayam" must not resolve to chicken meat
			{ID: "EGG", Synonyms: []string{"telur ayam", "telur", "egg"}},
			{ID: "CHICKEN", Synonyms: []string{"daging ayam", "ayam ras", "chicken meat", "broiler", "chicken"}},
			{ID: "WHEAT_FLOUR", Synonyms: []string{"tepung terigu", "terigu", "wheat flour", "flour"}},
			{ID: "SOYBEAN", Synonyms: []string{"kedelai", "kacang kedelai", "soybean", "soy bean"}},
			{ID: "CORN", Synonyms: []string{"jagung", "corn"}},
			{ID: "SALT", Synonyms: []string{"garam", "salt"}},
			{ID: "MILK", Synonyms: []string{"susu", "milk"}},
		},
		Regions: []Entry{
			{ID: "ACEH", Synonyms: []string{"aceh"}},
			{ID: "SUMATERA_UTARA", Synonyms: []string{"sumatera utara", "sumatra utara", "sumut", "north sumatra", "north sumatera"}},
			{ID: "SUMATERA_BARAT", Synonyms: []string{"sumatera barat", "sumatra barat", "sumbar", "west sumatra", "west sumatera"}},
			// the islands province before the mainland one
			{ID: "KEPULAUAN_RIAU", Synonyms: []string{"kepulauan riau", "kepri", "riau islands"}},
			{ID: "RIAU", Synonyms: []string{"riau"}},
			{ID: "JAMBI", Synonyms: []string{"jambi"}},
			{ID: "SUMATERA_SELATAN", Synonyms: []string{"sumatera selatan", "sumatra selatan", "sumsel", "south sumatra", "south sumatera"}},
			{ID: "BANGKA_BELITUNG", Synonyms: []string{"bangka belitung", "babel", "bangka"}},
			{ID: "BENGKULU", Synonyms: []string{"bengkulu"}},
			{ID: "LAMPUNG", Synonyms: []string{"lampung"}},
			{ID: "DI_YOGYAKARTA", Synonyms: []string{"yogyakarta", "jogja", "jogjakarta"}},
			{ID: "DKI_JAKARTA", Synonyms: []string{"dki jakarta", "jakarta"}},
			{ID: "JAWA_BARAT", Synonyms: []string{"jawa barat", "jabar", "west java"}},
			{ID: "BANTEN", Synonyms: []string{"banten"}},
			{ID: "JAWA_TENGAH", Synonyms: []string{"jawa tengah", "jateng", "central java"}},
			{ID: "JAWA_TIMUR", Synonyms: []string{"jawa timur", "jatim", "east java"}},
			{ID: "BALI", Synonyms: []string{"bali"}},
			{ID: "NUSA_TENGGARA_BARAT", Synonyms: []string{"nusa tenggara barat", "ntb", "west nusa tenggara"}},
			{ID: "NUSA_TENGGARA_TIMUR", Synonyms: []string{"nusa tenggara timur", "ntt", "east nusa tenggara"}},
			{ID: "KALIMANTAN_BARAT", Synonyms: []string{"kalimantan barat", "kalbar", "west kalimantan"}},
			{ID: "KALIMANTAN_TENGAH", Synonyms: []string{"kalimantan tengah", "kalteng", "central kalimantan"}},
			{ID: "KALIMANTAN_SELATAN", Synonyms: []string{"kalimantan selatan", "kalsel", "south kalimantan"}},
			{ID: "KALIMANTAN_TIMUR", Synonyms: []string{"kalimantan timur", "kaltim", "east kalimantan"}},
			{ID: "KALIMANTAN_UTARA", Synonyms: []string{"kalimantan utara", "kaltara", "north kalimantan"}},
			{ID: "SULAWESI_UTARA", Synonyms: []string{"sulawesi utara", "sulut", "north sulawesi"}},
			{ID: "SULAWESI_TENGAH", Synonyms: []string{"sulawesi tengah", "sulteng", "central sulawesi"}},
			{ID: "SULAWESI_SELATAN", Synonyms: []string{"sulawesi selatan", "sulsel", "south sulawesi"}},
			{ID: "SULAWESI_TENGGARA", Synonyms: []string{"sulawesi tenggara", "sultra", "southeast sulawesi"}},
			{ID: "GORONTALO", Synonyms: []string{"gorontalo"}},
			{ID: "SULAWESI_BARAT", Synonyms: []string{"sulawesi barat", "sulbar", "west sulawesi"}},
			{ID: "MALUKU_UTARA", Synonyms: []string{"maluku utara", "malut", "north maluku"}},
			{ID: "MALUKU", Synonyms: []string{"maluku"}},
			{ID: "PAPUA_BARAT", Synonyms: []string{"papua barat", "west papua"}},
			{ID: "PAPUA", Synonyms: []string{"papua"}},
			{ID: "NATIONAL", Synonyms: []string{"nasional", "national", "indonesia"}},
		},
	}
}
