package ectd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/garyjia/submission-packager/internal/models"
)

// moduleNames maps the first folder of a target path to its index.xml element
var moduleNames = map[string]string{
	"m1": "m1-administrative-information-and-prescribing-information",
	"m2": "m2-common-technical-document-summaries",
	"m3": "m3-quality",
	"m4": "m4-nonclinical-study-reports",
	"m5": "m5-clinical-study-reports",
}

const defaultModule = "m5"

// Leaf is one file entry of index.xml
type Leaf struct {
	ID           string
	Href         string
	Checksum     string
	ChecksumType string
	Title        string
}

// Module groups the leaves filed under one CTD module
type Module struct {
	Element string
	Leaves  []Leaf
}

// IndexData is everything rendered into index.xml
type IndexData struct {
	Sequence       string
	SubmissionType string
	SubmissionDate string
	Applicant      string
	StudyNumber    string
	Modules        []Module
}

// RegionalData is everything rendered into us-regional.xml
type RegionalData struct {
	Sequence          string
	SubmissionType    string
	ApplicationNumber string
	CompanyName       string
	Description       string
}

// BuildIndexData groups manifest entries into modules by the first folder of their target path.
// algorithm selects which manifest digest is written as the leaf checksum; empty means md5.
func BuildIndexData(study *models.Study, entries []models.ManifestEntry, submitted time.Time, algorithm string) IndexData {
	if algorithm != ChecksumSHA256 {
		algorithm = ChecksumMD5
	}
	data := IndexData{
		Sequence:       study.Sequence,
		SubmissionType: study.SubmissionType,
		SubmissionDate: submitted.Format("2006-01-02"),
		Applicant:      study.Sponsor,
		StudyNumber:    study.StudyNumber,
	}

	byModule := make(map[string][]Leaf)
	for i, e := range entries {
		key := defaultModule
		if first, _, found := strings.Cut(e.TargetPath, "/"); found {
			if _, ok := moduleNames[first]; ok {
				key = first
			}
		}
		title := e.NodeTitle
		if title == "" {
			title = path.Base(e.TargetPath)
		}
		if e.NodeCode != "" {
			title = fmt.Sprintf("%s - %s", e.NodeCode, title)
		}
		checksum := e.MD5
		if algorithm == ChecksumSHA256 {
			checksum = e.SHA256
		}
		byModule[key] = append(byModule[key], Leaf{
			ID:           fmt.Sprintf("leaf-%04d", i+1),
			Href:         e.TargetPath,
			Checksum:     checksum,
			ChecksumType: algorithm,
			Title:        title,
		})
	}

	keys := make([]string, 0, len(byModule))
	for k := range byModule {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.Modules = append(data.Modules, Module{Element: moduleNames[k], Leaves: byModule[k]})
	}
	return data
}

// BuildRegionalData derives the regional addendum fields from the study
func BuildRegionalData(study *models.Study) RegionalData {
	return RegionalData{
		Sequence:          study.Sequence,
		SubmissionType:    study.SubmissionType,
		ApplicationNumber: study.ApplicationNumber,
		CompanyName:       study.Sponsor,
		Description:       study.Title,
	}
}

var funcs = template.FuncMap{"x": escape}

var indexTemplate = template.Must(template.New("index").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<ectd:ectd xmlns:ectd="` + NamespaceECTD + `" xmlns:xlink="` + NamespaceXlink + `" dtd-version="3.2">
  <submission>
    <sequence>{{x .Sequence}}</sequence>
    <submission-type>{{x .SubmissionType}}</submission-type>
    <submission-date>{{x .SubmissionDate}}</submission-date>
  </submission>
  <applicant>{{x .Applicant}}</applicant>
  <study-number>{{x .StudyNumber}}</study-number>
{{- range .Modules}}
  <{{.Element}}>
{{- range .Leaves}}
    <leaf ID="{{x .ID}}" operation="new" checksum="{{x .Checksum}}" checksum-type="{{x .ChecksumType}}" xlink:type="simple" xlink:href="{{x .Href}}">
      <title>{{x .Title}}</title>
    </leaf>
{{- end}}
  </{{.Element}}>
{{- end}}
</ectd:ectd>
`))

var regionalTemplate = template.Must(template.New("regional").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<fda-regional:fda-regional xmlns:fda-regional="` + NamespaceRegional + `" xmlns:xlink="` + NamespaceXlink + `" dtd-version="2.01">
  <admin>
    <applicant-info>
      <company-name>{{x .CompanyName}}</company-name>
      <submission-description>{{x .Description}}</submission-description>
    </applicant-info>
    <application-set>
      <application>
        <application-information>
          <application-number>{{x .ApplicationNumber}}</application-number>
        </application-information>
        <submission-information>
          <submission-type>{{x .SubmissionType}}</submission-type>
          <sequence-number>{{x .Sequence}}</sequence-number>
        </submission-information>
      </application>
    </application-set>
  </admin>
</fda-regional:fda-regional>
`))

// RenderIndex produces index.xml
func RenderIndex(data IndexData) (string, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render index.xml: %w", err)
	}
	return buf.String(), nil
}

// RenderRegional produces us-regional.xml
func RenderRegional(data RegionalData) (string, error) {
	var buf bytes.Buffer
	if err := regionalTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render us-regional.xml: %w", err)
	}
	return buf.String(), nil
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
