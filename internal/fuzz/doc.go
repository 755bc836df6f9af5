// Package fuzztests houses Go fuzz harnesses for the unit script pipeline
// (source -> unit parser -> analysis). They guard against panics, hangs and
// invariant violations on arbitrary input.
//
// Назначение: загружать байты в FileSet и прогонять их через парсер и анализ.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
package fuzztests
