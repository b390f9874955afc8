package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"goat-backend/models"
)

// Keyword-Namensraum für Methoden (Evidence & Conclusion Ontology).
const methodKeywordScope = "eco"

// KeywordRef referenziert ein Keyword über seine ID oder schlägt über den
// Namen einen neuen Begriff vor. Genau eines der Felder ist gesetzt.
type KeywordRef struct {
	ID   *uint  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (k *KeywordRef) check() error {
	if k == nil || (k.ID == nil) == (k.Name == "") {
		return validationErrorf("id xor name required for Keywords")
	}
	return nil
}

// AnnotationData sind die typabhängigen Daten einer Annotation.
type AnnotationData struct {
	LocusName        string      `json:"locusName"`
	LocusName2       string      `json:"locusName2,omitempty"`
	Method           *KeywordRef `json:"method,omitempty"`
	Keyword          *KeywordRef `json:"keyword,omitempty"`
	EvidenceWith     []string    `json:"evidence_with,omitempty"`
	IsEvidenceWithOr bool        `json:"isEvidenceWithOr,omitempty"`
	Text             string      `json:"text,omitempty"`
}

// AnnotationInput ist eine Annotation im Request. ID und Status werden nur
// bei der Kuration ausgewertet.
type AnnotationInput struct {
	ID     *uint                      `json:"id,omitempty"`
	Status models.AnnotationStatus    `json:"status,omitempty"`
	Type   string                     `json:"type"`
	Data   map[string]json.RawMessage `json:"data"`
}

// formatContext bündelt alles, was die Format-Strategien während einer
// Anfrage brauchen. keywordTypes lebt nur so lange wie die Anfrage.
type formatContext struct {
	tx           *gorm.DB
	loci         locusMap
	submitterID  uint
	keywordScope string
	keywordTypes map[string]uint
}

func newFormatContext(tx *gorm.DB, loci locusMap, submitterID uint) *formatContext {
	return &formatContext{tx: tx, loci: loci, submitterID: submitterID, keywordTypes: map[string]uint{}}
}

// annotationFormat beschreibt eine Struktur von Kinddaten. check läuft ohne
// I/O, verify darf lesen, create/update/remove schreiben.
type annotationFormat struct {
	name           models.AnnotationFormat
	fields         []string
	optionalFields []string

	check  func(d *AnnotationData) error
	verify func(fc *formatContext, d *AnnotationData) error
	create func(fc *formatContext, d *AnnotationData) (uint, error)
	update func(fc *formatContext, childID uint, d *AnnotationData) error
	remove func(fc *formatContext, childID uint) error
}

type annotationType struct {
	label        string
	format       *annotationFormat
	keywordScope string
}

var baseFields = []string{"locusName"}

var (
	geneTermFormat = &annotationFormat{
		name:           models.FormatGeneTerm,
		fields:         append(append([]string{}, baseFields...), "method", "keyword", "evidence_with", "isEvidenceWithOr"),
		optionalFields: []string{"evidence_with", "isEvidenceWithOr"},
		check:          checkGeneTerm,
		verify:         verifyGeneTerm,
		create:         createGeneTerm,
		update:         updateGeneTerm,
		remove:         removeGeneTerm,
	}
	geneGeneFormat = &annotationFormat{
		name:   models.FormatGeneGene,
		fields: append(append([]string{}, baseFields...), "locusName2", "method"),
		check:  checkGeneGene,
		verify: verifyGeneGene,
		create: createGeneGene,
		update: updateGeneGene,
		remove: func(fc *formatContext, id uint) error {
			return fc.tx.Delete(&models.GeneGeneAnnotation{}, id).Error
		},
	}
	commentFormat = &annotationFormat{
		name:   models.FormatComment,
		fields: append(append([]string{}, baseFields...), "text"),
		check:  checkComment,
		verify: func(fc *formatContext, d *AnnotationData) error {
			_, err := fc.loci.lookup(d.LocusName)
			return err
		},
		create: func(fc *formatContext, d *AnnotationData) (uint, error) {
			child := models.CommentAnnotation{Text: d.Text}
			err := fc.tx.Create(&child).Error
			return child.ID, err
		},
		update: func(fc *formatContext, id uint, d *AnnotationData) error {
			return fc.tx.Model(&models.CommentAnnotation{ID: id}).UpdateColumn("text", d.Text).Error
		},
		remove: func(fc *formatContext, id uint) error {
			return fc.tx.Delete(&models.CommentAnnotation{}, id).Error
		},
	}
)

// annotationTypes ist die Registry aller Annotationstypen. Ein neuer Typ
// braucht nur einen Eintrag hier.
var annotationTypes = map[string]annotationType{
	"MOLECULAR_FUNCTION":   {label: "Molecular Function", format: geneTermFormat, keywordScope: "molecular_function"},
	"BIOLOGICAL_PROCESS":   {label: "Biological Process", format: geneTermFormat, keywordScope: "biological_process"},
	"SUBCELLULAR_LOCATION": {label: "Subcellular Location", format: geneTermFormat, keywordScope: "cellular_component"},
	"ANATOMICAL_LOCATION":  {label: "Anatomical Location", format: geneTermFormat, keywordScope: "plant_anatomy"},
	"TEMPORAL_EXPRESSION":  {label: "Temporal Expression", format: geneTermFormat, keywordScope: "plant_structure_development_stage"},
	"PROTEIN_INTERACTION":  {label: "Protein Interaction", format: geneGeneFormat},
	"COMMENT":              {label: "Comment", format: commentFormat},
}

// AnnotationTypeInfo beschreibt einen Annotationstyp für die API.
type AnnotationTypeInfo struct {
	Name         string                  `json:"name"`
	Label        string                  `json:"label"`
	Format       models.AnnotationFormat `json:"format"`
	KeywordScope string                  `json:"keyword_scope,omitempty"`
}

// AnnotationTypes listet alle bekannten Annotationstypen, sortiert nach Name.
func AnnotationTypes() []AnnotationTypeInfo {
	infos := make([]AnnotationTypeInfo, 0, len(annotationTypes))
	for name, t := range annotationTypes {
		infos = append(infos, AnnotationTypeInfo{Name: name, Label: t.label, Format: t.format.name, KeywordScope: t.keywordScope})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// parsedAnnotation ist eine Annotation nach der Prüfung ohne I/O.
type parsedAnnotation struct {
	input AnnotationInput
	typ   annotationType
	data  AnnotationData
}

// parseAnnotation prüft Typ, Feldnamen und Form der Daten, ohne die Datenbank zu berühren.
func parseAnnotation(in AnnotationInput) (*parsedAnnotation, error) {
	if in.Type == "" || in.Data == nil {
		return nil, validationErrorf("Body contained malformed Annotation data")
	}
	typ, ok := annotationTypes[in.Type]
	if !ok {
		return nil, validationErrorf("Invalid annotation type %s", in.Type)
	}
	if err := diffFields(in.Type, in.Data, typ.format.fields, typ.format.optionalFields); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(in.Data)
	if err != nil {
		return nil, validationErrorf("Body contained malformed Annotation data")
	}
	var data AnnotationData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("Invalid %s data", in.Type), Err: err}
	}
	if err := typ.format.check(&data); err != nil {
		return nil, err
	}
	return &parsedAnnotation{input: in, typ: typ, data: data}, nil
}

// diffFields meldet überzählige und fehlende Felder in sortierter Reihenfolge.
func diffFields(typeName string, data map[string]json.RawMessage, fields, optional []string) error {
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}

	var extra []string
	for key := range data {
		if !allowed[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return validationErrorf("Invalid %s fields: %s", typeName, strings.Join(extra, ","))
	}

	isOptional := make(map[string]bool, len(optional))
	for _, f := range optional {
		isOptional[f] = true
	}
	var missing []string
	for _, f := range fields {
		if _, ok := data[f]; !ok && !isOptional[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return validationErrorf("Missing %s fields: %s", typeName, strings.Join(missing, ","))
	}
	return nil
}

func checkGeneTerm(d *AnnotationData) error {
	if err := d.Method.check(); err != nil {
		return err
	}
	if err := d.Keyword.check(); err != nil {
		return err
	}
	for _, name := range d.EvidenceWith {
		if name == "" {
			return validationErrorf("evidence_with must only contain locus names")
		}
	}
	return nil
}

func checkGeneGene(d *AnnotationData) error {
	return d.Method.check()
}

// checkComment normalisiert den Text auf NFC, damit die Längenprüfung und die
// gespeicherte Fassung unabhängig von der Eingabe-Kodierung sind.
func checkComment(d *AnnotationData) error {
	d.Text = norm.NFC.String(d.Text)
	if strings.TrimSpace(d.Text) == "" {
		return validationErrorf("Comment text must not be empty")
	}
	if utf8.RuneCountInString(d.Text) > models.MaxCommentLength {
		return validationErrorf("Comment text exceeds %d characters", models.MaxCommentLength)
	}
	return nil
}

// verifyKeyword prüft, dass ein per ID referenziertes Keyword existiert, nicht
// obsolet ist und zum erwarteten Namensraum gehört.
func verifyKeyword(fc *formatContext, ref *KeywordRef, scope, label string) error {
	if ref.ID == nil {
		return nil
	}
	var kw models.Keyword
	err := fc.tx.Preload("KeywordType").First(&kw, *ref.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return referenceErrorf("%s id %d does not reference an existing Keyword", label, *ref.ID)
	}
	if err != nil {
		return err
	}
	if kw.IsObsolete {
		return validationErrorf("%s id %d references an obsolete Keyword", label, *ref.ID)
	}
	if scope != "" && kw.KeywordType != nil && kw.KeywordType.Name != scope {
		return validationErrorf("%s id %d is not a %s Keyword", label, *ref.ID, scope)
	}
	return nil
}

// resolveKeyword liefert entweder die Keyword-ID oder die ID des
// vorgeschlagenen KeywordTemp für eine Referenz.
func resolveKeyword(fc *formatContext, ref *KeywordRef, scope string) (keywordID, tempID *uint, err error) {
	if ref.ID != nil {
		id := *ref.ID
		return &id, nil, nil
	}

	typeID, ok := fc.keywordTypes[scope]
	if !ok {
		kt, err := GetOrCreateKeywordType(fc.tx, scope)
		if err != nil {
			return nil, nil, err
		}
		typeID = kt.ID
		fc.keywordTypes[scope] = typeID
	}

	temp, err := GetOrCreateKeywordTemp(fc.tx, ref.Name, typeID, fc.submitterID)
	if err != nil {
		return nil, nil, err
	}
	return nil, &temp.ID, nil
}

func verifyGeneTerm(fc *formatContext, d *AnnotationData) error {
	if _, err := fc.loci.lookup(d.LocusName); err != nil {
		return err
	}
	for _, name := range d.EvidenceWith {
		if _, err := fc.loci.lookupEvidence(name); err != nil {
			return err
		}
	}
	if err := verifyKeyword(fc, d.Method, methodKeywordScope, "Method"); err != nil {
		return err
	}
	return verifyKeyword(fc, d.Keyword, fc.keywordScope, "Keyword")
}

func buildGeneTerm(fc *formatContext, d *AnnotationData) (*models.GeneTermAnnotation, error) {
	child := &models.GeneTermAnnotation{IsEvidenceWithOr: d.IsEvidenceWithOr}
	var err error
	if child.MethodID, child.MethodTempID, err = resolveKeyword(fc, d.Method, methodKeywordScope); err != nil {
		return nil, err
	}
	if child.KeywordID, child.KeywordTempID, err = resolveKeyword(fc, d.Keyword, fc.keywordScope); err != nil {
		return nil, err
	}
	return child, nil
}

func evidenceRows(fc *formatContext, childID uint, d *AnnotationData) []models.EvidenceWith {
	rows := make([]models.EvidenceWith, 0, len(d.EvidenceWith))
	seen := map[uint]bool{}
	for _, name := range d.EvidenceWith {
		entry := fc.loci[name]
		if seen[entry.LocusID] {
			continue
		}
		seen[entry.LocusID] = true
		rows = append(rows, models.EvidenceWith{GeneTermAnnotationID: childID, LocusID: entry.LocusID})
	}
	return rows
}

func createGeneTerm(fc *formatContext, d *AnnotationData) (uint, error) {
	child, err := buildGeneTerm(fc, d)
	if err != nil {
		return 0, err
	}
	if err := fc.tx.Create(child).Error; err != nil {
		return 0, err
	}
	if rows := evidenceRows(fc, child.ID, d); len(rows) > 0 {
		if err := fc.tx.Create(&rows).Error; err != nil {
			return 0, err
		}
	}
	return child.ID, nil
}

func updateGeneTerm(fc *formatContext, id uint, d *AnnotationData) error {
	child, err := buildGeneTerm(fc, d)
	if err != nil {
		return err
	}
	err = fc.tx.Model(&models.GeneTermAnnotation{ID: id}).
		Select("MethodID", "MethodTempID", "KeywordID", "KeywordTempID", "IsEvidenceWithOr").
		Updates(child).Error
	if err != nil {
		return err
	}
	if err := fc.tx.Where("gene_term_annotation_id = ?", id).Delete(&models.EvidenceWith{}).Error; err != nil {
		return err
	}
	if rows := evidenceRows(fc, id, d); len(rows) > 0 {
		return fc.tx.Create(&rows).Error
	}
	return nil
}

func removeGeneTerm(fc *formatContext, id uint) error {
	if err := fc.tx.Where("gene_term_annotation_id = ?", id).Delete(&models.EvidenceWith{}).Error; err != nil {
		return err
	}
	return fc.tx.Delete(&models.GeneTermAnnotation{}, id).Error
}

func verifyGeneGene(fc *formatContext, d *AnnotationData) error {
	if _, err := fc.loci.lookup(d.LocusName); err != nil {
		return err
	}
	if _, err := fc.loci.lookup(d.LocusName2); err != nil {
		return err
	}
	return verifyKeyword(fc, d.Method, methodKeywordScope, "Method")
}

func buildGeneGene(fc *formatContext, d *AnnotationData) (*models.GeneGeneAnnotation, error) {
	locus2 := fc.loci[d.LocusName2]
	child := &models.GeneGeneAnnotation{Locus2ID: locus2.LocusID, Locus2SymbolID: locus2.SymbolID}
	var err error
	if child.MethodID, child.MethodTempID, err = resolveKeyword(fc, d.Method, methodKeywordScope); err != nil {
		return nil, err
	}
	return child, nil
}

func createGeneGene(fc *formatContext, d *AnnotationData) (uint, error) {
	child, err := buildGeneGene(fc, d)
	if err != nil {
		return 0, err
	}
	if err := fc.tx.Create(child).Error; err != nil {
		return 0, err
	}
	return child.ID, nil
}

func updateGeneGene(fc *formatContext, id uint, d *AnnotationData) error {
	child, err := buildGeneGene(fc, d)
	if err != nil {
		return err
	}
	return fc.tx.Model(&models.GeneGeneAnnotation{ID: id}).
		Select("MethodID", "MethodTempID", "Locus2ID", "Locus2SymbolID").
		Updates(child).Error
}
