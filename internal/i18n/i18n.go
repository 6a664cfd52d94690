// Package i18n holds the active UI language and the localized string table.
// Placeholder substitution ({count}, {time}, {files}) is done by callers via
// strings.ReplaceAll on the looked-up string.
package i18n

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type Language string

const (
	LangEN Language = "en"
	LangVI Language = "vi"
)

type Store struct {
	mu   sync.RWMutex
	lang Language
	log  zerolog.Logger
}

func NewStore(lang Language, log zerolog.Logger) *Store {
	if lang != LangEN && lang != LangVI {
		lang = LangVI
	}
	return &Store{lang: lang, log: log}
}

func (s *Store) Language() Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

func (s *Store) SetLanguage(lang Language) error {
	if lang != LangEN && lang != LangVI {
		return fmt.Errorf("unsupported language: %s", lang)
	}
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	return nil
}

// Translate returns the localized string for key, or the key itself on a
// lookup miss. It never returns an empty string.
func (s *Store) Translate(key string) string {
	entry, ok := translations[key]
	if !ok {
		s.log.Debug().Str("key", key).Msg("translation key not found")
		return key
	}
	s.mu.RLock()
	lang := s.lang
	s.mu.RUnlock()
	value, ok := entry[lang]
	if !ok || value == "" {
		s.log.Debug().Str("key", key).Str("lang", string(lang)).Msg("translation missing for language")
		return key
	}
	return value
}

var translations = map[string]map[Language]string{
	"nav.home": {
		LangEN: "Home",
		LangVI: "Trang chủ",
	},
	"nav.reference": {
		LangEN: "Provider Files",
		LangVI: "Tệp tham khảo",
	},
	"home.title": {
		LangEN: "AI-Powered Product Analysis",
		LangVI: "Phân tích sản phẩm bằng AI",
	},
	"home.subtitle": {
		LangEN: "Extract and analyze product data from Excel files",
		LangVI: "Trích xuất và phân tích dữ liệu sản phẩm từ tệp Excel",
	},
	"home.upload.title": {
		LangEN: "Upload Excel File",
		LangVI: "Tải lên tệp Excel",
	},
	"home.upload.supported": {
		LangEN: "Supported formats: .xlsx, .xls",
		LangVI: "Định dạng được hỗ trợ: .xlsx, .xls",
	},
	"home.upload.processing": {
		LangEN: "Processing file",
		LangVI: "Đang xử lý tệp",
	},
	"home.upload.completed": {
		LangEN: "Processing completed!",
		LangVI: "Đã hoàn thành xử lý!",
	},
	"home.sheet.label": {
		LangEN: "Select Sheet",
		LangVI: "Chọn Sheet",
	},
	"home.extracted.noData": {
		LangEN: "No products extracted. Please upload an Excel file to begin.",
		LangVI: "Không có sản phẩm được trích xuất. Vui lòng tải lên tệp Excel để bắt đầu.",
	},
	"analysis.analyzing": {
		LangEN: "Analyzing products",
		LangVI: "Đang phân tích sản phẩm",
	},
	"analysis.productCount": {
		LangEN: "Processing {count} products (~5s per product)",
		LangVI: "Đang xử lý {count} sản phẩm (~5 giây mỗi sản phẩm)",
	},
	"analysis.timeRemaining": {
		LangEN: "Estimated time remaining: {time} seconds",
		LangVI: "Thời gian ước tính còn lại: {time} giây",
	},
	"analysis.noData": {
		LangEN: "No analysis results. Please confirm and analyze products first.",
		LangVI: "Không có kết quả phân tích. Vui lòng xác nhận và phân tích sản phẩm trước.",
	},
	"reference.upload.processing": {
		LangEN: "Processing files",
		LangVI: "Đang xử lý tệp",
	},
	"reference.filesUploaded": {
		LangEN: "{count} files uploaded",
		LangVI: "{count} tệp đã được tải lên",
	},
	"toast.fileProcessed": {
		LangEN: "File processed successfully",
		LangVI: "Tệp đã được xử lý thành công",
	},
	"toast.fileError": {
		LangEN: "Error processing file. Please try again.",
		LangVI: "Lỗi khi xử lý tệp. Vui lòng thử lại.",
	},
	"toast.invalidFileType": {
		LangEN: "Invalid file type: {files}. Only .xlsx and .xls files are supported.",
		LangVI: "Loại tệp không hợp lệ: {files}. Chỉ hỗ trợ tệp .xlsx và .xls.",
	},
	"toast.noExcelFiles": {
		LangEN: "No Excel files found in the selection",
		LangVI: "Không tìm thấy tệp Excel nào trong lựa chọn",
	},
	"toast.referenceUploaded": {
		LangEN: "{count} provider files uploaded successfully",
		LangVI: "{count} tệp nhà cung cấp đã được tải lên thành công",
	},
	"toast.referenceError": {
		LangEN: "Error processing provider files. Please try again.",
		LangVI: "Lỗi khi xử lý tệp nhà cung cấp. Vui lòng thử lại.",
	},
	"toast.analyzeSuccess": {
		LangEN: "Products analyzed successfully",
		LangVI: "Sản phẩm đã được phân tích thành công",
	},
	"toast.analyzeError": {
		LangEN: "Error analyzing products. Please try again.",
		LangVI: "Lỗi khi phân tích sản phẩm. Vui lòng thử lại.",
	},
	"toast.parseError": {
		LangEN: "Failed to parse server response",
		LangVI: "Không thể phân tích phản hồi từ máy chủ",
	},
	"toast.noProducts": {
		LangEN: "No products to analyze",
		LangVI: "Không có sản phẩm để phân tích",
	},
	"toast.noReference": {
		LangEN: "Provider files required. Please upload provider files first.",
		LangVI: "Yêu cầu tệp nhà cung cấp. Vui lòng tải lên tệp nhà cung cấp trước.",
	},
	"toast.noAnalysis": {
		LangEN: "No analyzed data to download",
		LangVI: "Không có dữ liệu phân tích để tải xuống",
	},
	"toast.csvDownloaded": {
		LangEN: "CSV downloaded successfully",
		LangVI: "Tệp CSV đã được tải xuống thành công",
	},
	"toast.busy": {
		LangEN: "Another operation is still in progress",
		LangVI: "Một thao tác khác vẫn đang được thực hiện",
	},
	"common.loading": {
		LangEN: "Loading...",
		LangVI: "Đang tải...",
	},
	"common.error": {
		LangEN: "An error occurred",
		LangVI: "Đã xảy ra lỗi",
	},
	"common.success": {
		LangEN: "Success",
		LangVI: "Thành công",
	},
	"common.itemsPerPage": {
		LangEN: "Items per page",
		LangVI: "Mục mỗi trang",
	},
	"common.page": {
		LangEN: "Page",
		LangVI: "Trang",
	},
	"common.of": {
		LangEN: "of",
		LangVI: "của",
	},
}
