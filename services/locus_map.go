package services

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"goat-backend/models"
	"goat-backend/providers"
)

// locusEntry ist ein bereits aufgelöster Locus einer Anfrage. FromGene ist
// gesetzt, wenn der Name als Gen der Submission angegeben wurde.
type locusEntry struct {
	LocusID  uint
	SourceID uint
	SymbolID *uint
	FromGene bool
}

// locusMap ordnet die Locus-Namen einer Anfrage den aufgelösten Loci zu.
// Sie wird vollständig aufgebaut, bevor die erste Annotation geprüft wird.
type locusMap map[string]locusEntry

// lookup liefert den Locus für locusName bzw. locusName2. Nur Gene der
// Submission sind zulässig.
func (m locusMap) lookup(name string) (locusEntry, error) {
	entry, ok := m[name]
	if !ok || name == "" || !entry.FromGene {
		return locusEntry{}, referenceErrorf("Locus %s not present in submission", name)
	}
	return entry, nil
}

// lookupEvidence liefert den Locus eines evidence_with-Eintrags.
func (m locusMap) lookupEvidence(name string) (locusEntry, error) {
	entry, ok := m[name]
	if !ok || name == "" {
		return locusEntry{}, referenceErrorf("Locus %s not present in submission", name)
	}
	return entry, nil
}

// set trägt entry unter name ein. Ein Name bleibt Gen, wenn er es schon war.
func (m locusMap) set(name string, entry locusEntry) {
	if prev, ok := m[name]; ok && prev.FromGene {
		entry.FromGene = true
	}
	m[name] = entry
}

// locusPlan hält das Ergebnis der externen Auflösung, die vor der
// Transaktion läuft. Namen ohne Eintrag in resolved waren bereits bekannt.
type locusPlan struct {
	names    []string
	genes    map[string]bool
	resolved map[string]*providers.LocusRecord
}

// planLoci prüft, welche Namen noch unbekannt sind, und löst diese parallel
// über den LocusResolver auf. Die Datenbank wird dabei nur gelesen.
func planLoci(ctx context.Context, db *gorm.DB, resolver *LocusResolver, geneNames, evidenceNames []string) (*locusPlan, error) {
	plan := &locusPlan{
		names:    uniqueNames(append(append([]string{}, geneNames...), evidenceNames...)),
		genes:    make(map[string]bool, len(geneNames)),
		resolved: map[string]*providers.LocusRecord{},
	}
	for _, name := range geneNames {
		plan.genes[name] = true
	}

	var unknown []string
	for _, name := range plan.names {
		ln, err := FindLocusName(db, name)
		if err != nil {
			return nil, internalError("locus lookup failed", err)
		}
		if ln == nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return plan, nil
	}

	records := make([]*providers.LocusRecord, len(unknown))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range unknown {
		g.Go(func() error {
			record, err := resolver.Resolve(gctx, name)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, name := range unknown {
		plan.resolved[name] = records[i]
	}
	return plan, nil
}

// materialize legt die extern gefundenen Loci in der Transaktion an und baut
// daraus die locusMap.
func (p *locusPlan) materialize(tx *gorm.DB) (locusMap, error) {
	loci := make(locusMap, len(p.names))
	for _, name := range p.names {
		var (
			ln  *models.LocusName
			err error
		)
		if record, ok := p.resolved[name]; ok {
			ln, err = GetOrCreateLocus(tx, record)
		} else {
			ln, err = FindLocusName(tx, name)
		}
		if err != nil {
			return nil, err
		}
		if ln == nil {
			return nil, notFoundErrorf("No Locus found for name %s", name)
		}
		entry := locusEntry{LocusID: ln.LocusID, SourceID: ln.SourceID, FromGene: p.genes[name]}
		loci.set(name, entry)
		if ln.LocusName != name {
			loci.set(ln.LocusName, entry)
		}
	}
	return loci, nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func geneLoci(genes []GeneInput) []string {
	names := make([]string, 0, len(genes))
	for _, g := range genes {
		names = append(names, g.LocusName)
	}
	return names
}

// evidenceLoci sammelt die evidence_with-Namen aller Annotationen. Sie dürfen
// außerhalb der Gene liegen.
func evidenceLoci(annotations []*parsedAnnotation) []string {
	var names []string
	for _, a := range annotations {
		names = append(names, a.data.EvidenceWith...)
	}
	return names
}
