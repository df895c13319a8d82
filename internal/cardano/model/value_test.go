package model

import (
	"reflect"
	"testing"
)

const tokenUnit Unit = "aa00000000000000000000000000000000000000000000000000000074657374"

func TestAssetValue_Units(t *testing.T) {
	v := AssetValue{tokenUnit: 5, Lovelace: 10, "bb": 0}
	want := []Unit{Lovelace, tokenUnit}
	if got := v.Units(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Units() = %v, want %v", got, want)
	}
}

func TestAssetValue_SubAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    AssetValue
		want    AssetValue
		wantErr bool
	}{
		{name: "native", a: NewCoin(10), b: NewCoin(4), want: NewCoin(6)},
		{name: "drops zero entries", a: AssetValue{Lovelace: 4, tokenUnit: 1}, b: AssetValue{tokenUnit: 1}, want: NewCoin(4)},
		{name: "underflow", a: NewCoin(1), b: NewCoin(2), wantErr: true},
		{name: "missing unit", a: NewCoin(1), b: AssetValue{tokenUnit: 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Sub(tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Sub() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Sub() = %v, want %v", got, tt.want)
			}
			back, err := got.Add(tt.b)
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			if !back.Equal(tt.a) {
				t.Fatalf("Add() = %v, want %v", back, tt.a)
			}
		})
	}
}

func TestAssetValue_Shortfall(t *testing.T) {
	have := AssetValue{Lovelace: 10, tokenUnit: 2}
	if _, _, ok := have.Shortfall(AssetValue{Lovelace: 10, tokenUnit: 2}); !ok {
		t.Fatal("exact cover reported as shortfall")
	}
	unit, missing, ok := have.Shortfall(AssetValue{Lovelace: 5, tokenUnit: 7})
	if ok || unit != tokenUnit || missing != 5 {
		t.Fatalf("Shortfall() = %s %d %v", unit, missing, ok)
	}
}

func TestSumValues(t *testing.T) {
	total, err := SumValues([]UTxO{
		{Value: NewCoin(3)},
		{Value: AssetValue{Lovelace: 4, tokenUnit: 1}},
	})
	if err != nil {
		t.Fatalf("SumValues() error = %v", err)
	}
	if !total.Equal(AssetValue{Lovelace: 7, tokenUnit: 1}) {
		t.Fatalf("SumValues() = %v", total)
	}
}
