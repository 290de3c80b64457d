// Package xlsxreport renders slices of structs into xlsx workbooks laid out by
// a YAML template.
package xlsxreport

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Template is the YAML layout of a workbook.
type Template struct {
	Sheets []SheetTemplate `yaml:"sheets"`
}

// SheetTemplate is one worksheet; sections are stacked top to bottom.
type SheetTemplate struct {
	Name     string          `yaml:"name"`
	Sections []SectionConfig `yaml:"sections"`
}

// SectionConfig is a titled table bound to data by ID.
type SectionConfig struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	ShowHeader  bool           `yaml:"show_header"`
	HasFilter   bool           `yaml:"has_filter"`
	TitleStyle  *StyleTemplate `yaml:"title_style"`
	HeaderStyle *StyleTemplate `yaml:"header_style"`
	Columns     []ColumnConfig `yaml:"columns"`
}

// ColumnConfig maps a struct field (or map key) to a column.
type ColumnConfig struct {
	FieldName string  `yaml:"field_name"`
	Header    string  `yaml:"header"`
	Width     float64 `yaml:"width"`
	Formatter string  `yaml:"formatter"`
}

// StyleTemplate defines basic styling.
type StyleTemplate struct {
	Font *FontTemplate `yaml:"font"`
	Fill *FillTemplate `yaml:"fill"`
}

type FontTemplate struct {
	Bold  bool   `yaml:"bold"`
	Color string `yaml:"color"`
}

type FillTemplate struct {
	Color string `yaml:"color"`
}

// Formatter converts a field value before it is written to a cell.
type Formatter func(interface{}) interface{}

// Report binds data to a parsed Template.
type Report struct {
	template   Template
	data       map[string]interface{}
	formatters map[string]Formatter
}

// New parses a YAML template.
func New(yamlConfig string) (*Report, error) {
	if strings.TrimSpace(yamlConfig) == "" {
		return nil, fmt.Errorf("yaml config is empty")
	}
	var tmpl Template
	if err := yaml.Unmarshal([]byte(yamlConfig), &tmpl); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(tmpl.Sheets) == 0 {
		return nil, fmt.Errorf("template has no sheets")
	}
	return &Report{
		template:   tmpl,
		data:       make(map[string]interface{}),
		formatters: make(map[string]Formatter),
	}, nil
}

// Bind attaches a slice to the section with the given ID.
func (r *Report) Bind(sectionID string, data interface{}) *Report {
	r.data[sectionID] = data
	return r
}

// RegisterFormatter makes fn available to columns by name.
func (r *Report) RegisterFormatter(name string, fn Formatter) *Report {
	r.formatters[name] = fn
	return r
}

// Build renders the workbook. The caller owns the returned file.
func (r *Report) Build() (*excelize.File, error) {
	f := excelize.NewFile()
	for i, sheet := range r.template.Sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			f.Close()
			return nil, err
		}

		row := 1
		for _, sec := range sheet.Sections {
			next, err := r.renderSection(f, sheet.Name, sec, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("section %q: %w", sec.ID, err)
			}
			// one blank row between sections
			row = next + 1
		}
	}
	return f, nil
}

// Write renders the workbook into w.
func (r *Report) Write(w io.Writer) error {
	f, err := r.Build()
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// ToBytes renders the workbook in memory.
func (r *Report) ToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := r.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderSection writes sec starting at row and returns the first unused row.
func (r *Report) renderSection(f *excelize.File, sheet string, sec SectionConfig, row int) (int, error) {
	items := reflect.ValueOf(r.data[sec.ID])
	if items.Kind() == reflect.Ptr {
		items = items.Elem()
	}
	if items.IsValid() && items.Kind() != reflect.Slice {
		return row, fmt.Errorf("bound data must be a slice, got %s", items.Kind())
	}
	width := len(sec.Columns)

	if sec.Title != "" {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheet, cell, sec.Title); err != nil {
			return row, err
		}
		if width > 1 {
			end, _ := excelize.CoordinatesToCellName(width, row)
			if err := f.MergeCell(sheet, cell, end); err != nil {
				return row, err
			}
		}
		if err := applyStyle(f, sheet, sec.TitleStyle, row, 1, row, max(width, 1)); err != nil {
			return row, err
		}
		row++
	}

	headerRow := row
	if sec.ShowHeader && width > 0 {
		for i, col := range sec.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			header := col.Header
			if header == "" {
				header = col.FieldName
			}
			if err := f.SetCellValue(sheet, cell, header); err != nil {
				return row, err
			}
			if col.Width > 0 {
				name, _ := excelize.ColumnNumberToName(i + 1)
				if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
					return row, err
				}
			}
		}
		if err := applyStyle(f, sheet, sec.HeaderStyle, row, 1, row, width); err != nil {
			return row, err
		}
		row++
	}

	n := 0
	if items.IsValid() {
		n = items.Len()
	}
	for i := 0; i < n; i++ {
		item := items.Index(i)
		for item.Kind() == reflect.Ptr || item.Kind() == reflect.Interface {
			item = item.Elem()
		}
		for j, col := range sec.Columns {
			val := extractValue(item, col.FieldName)
			if fn, ok := r.formatters[col.Formatter]; ok {
				val = fn(val)
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return row, err
			}
		}
		row++
	}

	if sec.HasFilter && sec.ShowHeader && width > 0 {
		start, _ := excelize.CoordinatesToCellName(1, headerRow)
		end, _ := excelize.CoordinatesToCellName(width, max(row-1, headerRow))
		if err := f.AutoFilter(sheet, start+":"+end, nil); err != nil {
			return row, err
		}
	}
	return row, nil
}

func extractValue(item reflect.Value, fieldName string) interface{} {
	switch item.Kind() {
	case reflect.Struct:
		if f := item.FieldByName(fieldName); f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	case reflect.Map:
		if v := item.MapIndex(reflect.ValueOf(fieldName)); v.IsValid() {
			return v.Interface()
		}
	}
	return ""
}

func applyStyle(f *excelize.File, sheet string, tmpl *StyleTemplate, r1, c1, r2, c2 int) error {
	if tmpl == nil {
		return nil
	}
	style := &excelize.Style{}
	if tmpl.Font != nil {
		style.Font = &excelize.Font{
			Bold:  tmpl.Font.Bold,
			Color: strings.TrimPrefix(tmpl.Font.Color, "#"),
		}
	}
	if tmpl.Fill != nil {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Color:   []string{strings.TrimPrefix(tmpl.Fill.Color, "#")},
			Pattern: 1,
		}
	}
	id, err := f.NewStyle(style)
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(c1, r1)
	end, _ := excelize.CoordinatesToCellName(c2, r2)
	return f.SetCellStyle(sheet, start, end, id)
}
