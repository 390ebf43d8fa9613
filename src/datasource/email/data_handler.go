// data_handler.go
package email

import (
	"fmt"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/datasource/file"
	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// 各数据集必需的列
var requiredColumns = map[string][]string{
	config.DatasetTrips:         file.TripColumns,
	config.DatasetWeather:       file.WeatherColumns,
	config.DatasetExtract:       file.ExtractColumns,
	config.DatasetCompanies:     file.CompanyColumns,
	config.DatasetNeighborhoods: file.NeighborhoodColumns,
}

// ReadAttachment 将附件内容读成 DataFrame，所有列按字符串读取
func ReadAttachment(a *Attachment, sheetName string) (dataframe.DataFrame, error) {
	df, err := file.ReadBytes(a.Filename, a.Content, sheetName)
	if err != nil {
		return df, fmt.Errorf("读取附件 %s 失败: %w", a.Filename, err)
	}
	return df, nil
}

// ValidateAttachment 检查附件能否解析且包含数据集必需的列
func ValidateAttachment(a *Attachment, dataset, sheetName string) error {
	df, err := ReadAttachment(a, sheetName)
	if err != nil {
		return err
	}
	if missing := utils.MissingColumns(df, requiredColumns[dataset]); len(missing) > 0 {
		return &model.MalformedInputError{Source: a.Filename, Column: missing[0]}
	}
	if df.Nrow() == 0 {
		return fmt.Errorf("附件 %s 没有数据行", a.Filename)
	}
	return nil
}
