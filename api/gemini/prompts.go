package gemini

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
)

const (
	WelcomeMessage      = "Selamat datang di AI Trading Assistant! Saya siap membantu Anda dengan analisis dan rekomendasi trading forex USD/IDR. Silakan ajukan pertanyaan atau minta saran tentang kondisi pasar saat ini."
	DefaultQuestion     = "Apa rekomendasi Anda?"
	ChatFailedMessage   = "Maaf, terjadi kesalahan saat menghasilkan rekomendasi. Silakan coba lagi nanti."
	ReportFailedMessage = "Terjadi kesalahan saat menghasilkan laporan dan rekomendasi."
)

// Snapshot is the market context both prompts are built from.
type Snapshot struct {
	FedRate        null.Float
	BIRate         null.Float
	InflationID    null.Float
	InflationUS    null.Float
	JKSE           null.Float
	SP500          null.Float
	CurrentUSDIDR  null.Float
	USDIDRMonthAgo null.Float
	Predictions    []float64
	NewsHeadlines  string
}

func ReportPrompt(s Snapshot) string {
	return fmt.Sprintf(`Anda adalah seorang pakar keuangan. Buat laporan singkat dalam bentuk paragraf dengan penekanan di beberapa poin penting, berdasarkan indikator berikut:
- Suku Bunga Fed: %s%%
- Suku Bunga BI: %s%%
- Inflasi di Indonesia: %s%%
- Inflasi di AS: %s%%
- Indeks Harga Saham Gabungan (JKSE): %s
- Indeks S&P 500: %s
- Nilai tukar USD/IDR saat ini: %s
- Nilai tukar USD/IDR 1 bulan lalu: %s
- Prediksi harga USD/IDR: %s
- Berita terkait:
%s

Berikan laporan singkat dalam bentuk paragraf dengan penekanan pada suku bunga, inflasi, dan prediksi harga, misalnya *suku bunga meningkat* atau **prediksi penurunan**.

Format:
1. LAPORAN SINGKAT: hubungkan data di atas dengan kondisi ekonomi dan pasar terkini.
2. REKOMENDASI CEPAT: membeli, menjual, atau menahan.`,
		value(s.FedRate), value(s.BIRate), value(s.InflationID), value(s.InflationUS),
		value(s.JKSE), value(s.SP500), value(s.CurrentUSDIDR), value(s.USDIDRMonthAgo),
		series(s.Predictions), s.NewsHeadlines)
}

func ChatInstruction(s Snapshot) string {
	return fmt.Sprintf(`Kamu adalah pakar keuangan yang ramah dan berpengalaman. Tugasmu adalah membantu pengguna memahami situasi pasar valuta asing (forex) dan memberikan rekomendasi berdasarkan data dan berita terkini.

Data yang tersedia:
1. Suku bunga The Fed (AS): %s%%.
2. Suku bunga Bank Indonesia (BI-7Day-RR): %s%%.
3. Tingkat inflasi di Indonesia: %s%%.
4. Tingkat inflasi di AS: %s%%.
5. Harga penutupan terbaru JKSE: %s.
6. Harga penutupan terbaru S&P 500: %s.
7. Kurs USD/IDR saat ini: %s.
8. Kurs USD/IDR satu bulan yang lalu: %s.
9. Prediksi kurs USD/IDR untuk %d hari ke depan: %s.
10. Berita terkini:
%s

Jelaskan kondisi pasar dengan bahasa sederhana, rekomendasikan **membeli**, **menjual**, atau **menahan** USD/IDR, dan berikan alasannya.
Jika pertanyaan di luar topik keuangan atau forex, jangan menjawab.`,
		value(s.FedRate), value(s.BIRate), value(s.InflationID), value(s.InflationUS),
		value(s.JKSE), value(s.SP500), value(s.CurrentUSDIDR), value(s.USDIDRMonthAgo),
		len(s.Predictions), series(s.Predictions), s.NewsHeadlines)
}

func value(f null.Float) string {
	if !f.Valid {
		return "tidak tersedia"
	}
	return strconv.FormatFloat(f.Float64, 'f', 2, 64)
}

func series(values []float64) string {
	if len(values) == 0 {
		return "tidak tersedia"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
