// reader.go
package file

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"TaxiAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

const (
	Number string = "^[0-9]+(\\.[0-9]+)?$"
)

var numberRe = regexp.MustCompile(Number)

// ReadTable 按扩展名读取 csv/tsv/xlsx 到 DataFrame，所有列按字符串读取
func ReadTable(filePath, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		return ReadXLSXToDataFrame(filePath, sheetName)
	case ".tsv":
		return readDelimited(filePath, '\t')
	default:
		return ReadCSVToDataFrame(filePath)
	}
}

func ReadCSVToDataFrame(filePath string) (dataframe.DataFrame, error) {
	return readDelimited(filePath, ',')
}

func readDelimited(filePath string, delimiter rune) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	df, err := parseDelimited(f, delimiter)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return df, nil
}

func parseDelimited(r io.Reader, delimiter rune) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(delimiter),
	)
	return df, df.Err
}

// ReadBytes 解析内存中的表格数据(如邮件附件)，格式由文件名扩展名决定
func ReadBytes(name string, data []byte, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		xlFile, err := xlsx.OpenBinary(data)
		if err != nil {
			return dataframe.New(), fmt.Errorf("xlsx open binary false: %w", err)
		}
		sheet, err := pickSheet(xlFile, sheetName)
		if err != nil {
			return dataframe.New(), fmt.Errorf("%w: %s", err, name)
		}
		return convertSheetToDataFrame(sheet)
	case ".tsv":
		return parseDelimited(bytes.NewReader(data), '\t')
	case ".csv":
		return parseDelimited(bytes.NewReader(data), ',')
	default:
		return dataframe.New(), fmt.Errorf("不支持的文件类型: %s", name)
	}
}

func ReadXLSXToDataFrame(filePath, sheetName string) (dataframe.DataFrame, error) {
	df, err := ReadXLSX(filePath, sheetName)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx file: %w", err)
	}

	return df, nil
}

// ReadXLSX 读取工作表，sheetName 为空时取第一个工作表
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.New(), fmt.Errorf("xlsx open file false: %w", err)
	}

	sheet, err := pickSheet(xlFile, sheetName)
	if err != nil {
		return dataframe.New(), fmt.Errorf("%w: %s", err, filePath)
	}
	return convertSheetToDataFrame(sheet)
}

func pickSheet(xlFile *xlsx.File, sheetName string) (*xlsx.Sheet, error) {
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("excel文件中没有工作表")
	}
	if sheetName == "" {
		return xlFile.Sheets[0], nil
	}
	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		return nil, fmt.Errorf("工作表 %q 不存在", sheetName)
	}
	return sheet, nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame(第一行为标题行)
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.New(), fmt.Errorf("工作表 %s 为空", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.String()))
	}

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.String()
				if record[i] != "" {
					empty = false
				}
			}
		}
		// 跳过完全空的行
		if empty {
			continue
		}
		records = append(records, record)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return dataframe.New(), df.Err
	}
	return df, nil
}

// excelToTime Excel 序列日期转 time.Time
func excelToTime(excelDays float64) time.Time {
	// 1900 闰年错误：序列值 60 之前的日期需要多加一天
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if excelDays < 61 {
		base = base.AddDate(0, 0, 1)
	}
	days := int(excelDays)
	fraction := excelDays - float64(days)
	secs := math.Round(86400 * fraction)

	return base.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second)
}

// parseCellTime 解析时间单元格，兼容 Excel 序列日期
func parseCellTime(s string) (time.Time, error) {
	t, err := utils.ParseTimestamp(s)
	if err == nil {
		return t, nil
	}
	s = strings.TrimSpace(s)
	if numberRe.MatchString(s) {
		v, perr := strconv.ParseFloat(s, 64)
		if perr == nil && v > 0 {
			return excelToTime(v), nil
		}
	}
	return time.Time{}, err
}
