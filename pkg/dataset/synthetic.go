package dataset

import "fmt"

var (
	syntheticCategories = []string{
		"Финансы", "Инновации", "Экспорт", "Финансы", "Инновации",
		"Сельское хозяйство", "Экспорт", "Финансы", "Инновации", "Образование",
	}
	syntheticAmounts = []string{
		"до 1 млн руб.", "до 3 млн руб.", "до 5 млн руб.", "до 2 млн руб.", "до 4 млн руб.",
		"индивидуально", "до 6 млн руб.", "до 1.5 млн руб.", "до 3.5 млн руб.", "до 800 тыс. руб.",
	}
	syntheticStatuses = []string{
		"Активна", "Активна", "Завершена", "Активна", "Активна",
		"Активна", "Активна", "Завершена", "Активна", "Активна",
	}
)

// syntheticTable is the deterministic development dataset used when no
// source location is configured.
func syntheticTable() table {
	t := table{
		Header: []string{"id", "Название", "Описание", "Категория", "Размер поддержки", "Статус"},
	}
	for i := 1; i <= len(syntheticCategories); i++ {
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(i),
			fmt.Sprintf("Тестовая мера поддержки %d", i),
			fmt.Sprintf("Описание тестовой меры поддержки %d для разработки", i),
			syntheticCategories[i-1],
			syntheticAmounts[i-1],
			syntheticStatuses[i-1],
		})
	}
	return t
}
